package raster

import "iter"

// Tile addresses one tile in the TMS scheme: X grows east and Y grows
// north, both counted from the world's lower-left corner.
type Tile struct {
	X, Y int
}

// TileRange is a rectangular block of tiles, half-open: Min is
// included, Max is excluded.
type TileRange struct {
	Min, Max Tile
}

func (r TileRange) Contains(t Tile) bool {
	return r.Min.X <= t.X && t.X < r.Max.X &&
		r.Min.Y <= t.Y && t.Y < r.Max.Y
}

// Width is the number of tile columns in the range.
func (r TileRange) Width() int { return r.Max.X - r.Min.X }

// Height is the number of tile rows in the range.
func (r TileRange) Height() int { return r.Max.Y - r.Min.Y }

func (r TileRange) Count() int { return r.Width() * r.Height() }

// All yields every tile in the range, column by column from the
// lower-left corner.
func (r TileRange) All() iter.Seq[Tile] {
	return func(yield func(Tile) bool) {
		for x := r.Min.X; x < r.Max.X; x++ {
			for y := r.Min.Y; y < r.Max.Y; y++ {
				if !yield(Tile{X: x, Y: y}) {
					return
				}
			}
		}
	}
}
