//go:build !linux

package serial

import "fmt"

func Open(device string, baud int) (*Port, error) {
	return nil, fmt.Errorf("serial: %s not supported on this platform", device)
}
