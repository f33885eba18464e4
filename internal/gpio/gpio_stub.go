//go:build !linux || (!arm && !arm64)

package gpio

import "fmt"

func openInputLine(chip string, pin int) (inputLine, error) {
	return nil, fmt.Errorf("gpio: unsupported on this platform")
}

func openOutputLine(chip string, pin int) (outputLine, error) {
	return nil, fmt.Errorf("gpio: unsupported on this platform")
}
