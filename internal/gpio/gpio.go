// Package gpio drives the trigger button and the indicator LED.
//
// Pins use BCM numbering. On Raspberry Pi the kernel names header lines
// "GPIO<n>", which is how lines are located across gpiochips.
package gpio

import "fmt"

// Input is a digital input wired active-low with the internal pull-up
// enabled: the line idles HIGH and reads LOW while the button is held.
type Input struct {
	line inputLine
	pin  int
}

// Output is a digital output. It starts LOW.
type Output struct {
	line  outputLine
	pin   int
	level bool
}

type inputLine interface {
	Value() (int, error)
	Close() error
}

type outputLine interface {
	SetValue(v int) error
	Close() error
}

var openInputFn = openInputLine
var openOutputFn = openOutputLine

func OpenInput(chip string, pin int) (*Input, error) {
	if pin < 0 {
		return nil, fmt.Errorf("gpio: invalid pin %d", pin)
	}
	l, err := openInputFn(chip, pin)
	if err != nil {
		return nil, err
	}
	return &Input{line: l, pin: pin}, nil
}

func OpenOutput(chip string, pin int) (*Output, error) {
	if pin < 0 {
		return nil, fmt.Errorf("gpio: invalid pin %d", pin)
	}
	l, err := openOutputFn(chip, pin)
	if err != nil {
		return nil, err
	}
	return &Output{line: l, pin: pin}, nil
}

// Active reports whether the button is pressed. Read errors count as not
// pressed.
func (in *Input) Active() bool {
	if in == nil || in.line == nil {
		return false
	}
	v, err := in.line.Value()
	if err != nil {
		return false
	}
	// The line is requested active-low, so a logical 1 is an electrical LOW.
	return v == 1
}

// Level returns the electrical level of the pin (true = HIGH).
func (in *Input) Level() bool {
	return !in.Active()
}

func (in *Input) Close() error {
	if in == nil || in.line == nil {
		return nil
	}
	err := in.line.Close()
	in.line = nil
	return err
}

func (o *Output) Set(high bool) {
	if o == nil || o.line == nil {
		return
	}
	v := 0
	if high {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return
	}
	o.level = high
}

// Get returns the last level written.
func (o *Output) Get() bool {
	if o == nil {
		return false
	}
	return o.level
}

func (o *Output) Toggle() {
	o.Set(!o.Get())
}

// Close drives the pin LOW before releasing it.
func (o *Output) Close() error {
	if o == nil || o.line == nil {
		return nil
	}
	_ = o.line.SetValue(0)
	o.level = false
	err := o.line.Close()
	o.line = nil
	return err
}
