package warp

import (
	"encoding/xml"
	"fmt"
	"os"
)

// VRT holds the XML document a planning step produced. The content is
// opaque to the planner; it only travels to disk so the next utility
// can read it.
type VRT struct {
	content []byte
}

func NewVRT(content []byte) *VRT {
	return &VRT{content: content}
}

func (v *VRT) String() string { return string(v.content) }
func (v *VRT) Bytes() []byte  { return v.content }

// TempFile writes the document to a fresh .vrt file in dir, or in the
// system temp directory when dir is empty. The caller removes it.
func (v *VRT) TempFile(dir, prefix string) (string, error) {
	f, err := os.CreateTemp(dir, prefix+"*.vrt")
	if err != nil {
		return "", err
	}
	_, werr := f.Write(v.content)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing %s: %w", f.Name(), werr)
	}
	return f.Name(), nil
}

// VRTDataset is the slice of the VRT schema needed to inspect what a
// step produced.
type VRTDataset struct {
	XMLName      xml.Name  `xml:"VRTDataset"`
	RasterXSize  int       `xml:"rasterXSize,attr"`
	RasterYSize  int       `xml:"rasterYSize,attr"`
	SRS          string    `xml:"SRS"`
	GeoTransform string    `xml:"GeoTransform"`
	Bands        []VRTBand `xml:"VRTRasterBand"`
}

type VRTBand struct {
	DataType    string   `xml:"dataType,attr"`
	Band        int      `xml:"band,attr"`
	NoDataValue *float64 `xml:"NoDataValue"`
}

func (v *VRT) Dataset() (*VRTDataset, error) {
	var dataset VRTDataset
	if err := xml.Unmarshal(v.content, &dataset); err != nil {
		return nil, fmt.Errorf("parsing vrt: %w", err)
	}
	return &dataset, nil
}
