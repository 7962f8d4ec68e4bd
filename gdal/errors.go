package gdal

import (
	"fmt"
	"strings"
)

// InvocationError reports a GDAL utility that ran to completion and
// exited non-zero. Stderr carries the error stream with trailing
// newlines stripped; Output carries whatever reached standard output
// before the failure.
type InvocationError struct {
	Cmd      []string
	ExitCode int
	Output   []byte
	Stderr   string
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", strings.Join(e.Cmd, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}
