//go:build !linux

package basestation

import (
	"fmt"
	"io"
)

func openSerial(path string, baud int) (io.ReadCloser, error) {
	return nil, fmt.Errorf("serial source not supported on this platform")
}
