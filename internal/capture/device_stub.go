//go:build !capture_gocv

package capture

import "fmt"

func openDevice(ref string, _ Options) (Source, error) {
	return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, ref)
}
