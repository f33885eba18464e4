//go:build linux && (arm || arm64)

package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "sosbeacon"

func openInputLine(chip string, pin int) (inputLine, error) {
	return requestLine(chip, pin, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow, gpiocdev.WithConsumer(consumer))
}

func openOutputLine(chip string, pin int) (outputLine, error) {
	return requestLine(chip, pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
}

func requestLine(preferred string, pin int, opts ...gpiocdev.LineReqOption) (*gpiodLine, error) {
	lineName := fmt.Sprintf("GPIO%d", pin)

	var chipCandidates []string
	if preferred != "" {
		chipCandidates = append(chipCandidates, preferred)
	}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		p := filepath.Join("/dev", name)
		if strings.HasPrefix(name, "gpiochip") && p != preferred {
			chipCandidates = append(chipCandidates, p)
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodLine{chip: chip, line: line}, nil
	}

	return nil, fmt.Errorf("gpio: line %q not found (or busy)", lineName)
}

type gpiodLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLine) Value() (int, error) {
	if g == nil || g.line == nil {
		return 0, fmt.Errorf("gpio: line not initialized")
	}
	return g.line.Value()
}

func (g *gpiodLine) SetValue(v int) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("gpio: line not initialized")
	}
	return g.line.SetValue(v)
}

func (g *gpiodLine) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
