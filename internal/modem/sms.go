// Package modem sends SMS text messages through an AT-command cellular modem
// (SIM800 family) attached to a serial channel.
//
// Dispatch is fire-and-forget: the modem's OK/ERROR replies are never read,
// so a failed send looks the same as a successful one to the caller.
package modem

import (
	"log"
	"time"

	"sosbeacon/internal/clock"
)

const (
	cmdTextMode = "AT+CMGF=1"
	cmdSend     = "AT+CMGS="

	// ctrlZ terminates the message body and submits it.
	ctrlZ byte = 26
)

// Writer is the transmit side of the modem serial channel.
type Writer interface {
	WriteLine(s string) error
	WriteString(s string) (int, error)
	WriteByte(c byte) error
}

// Delays are the settle waits between protocol steps.
type Delays struct {
	// Settle follows the text-mode command, the addressing command and the
	// body.
	Settle time.Duration
	// Submit follows the terminating Ctrl+Z while the modem hands the message
	// to the network.
	Submit time.Duration
}

// DefaultDelays returns 500ms between AT steps and 5s after submit.
func DefaultDelays() Delays {
	return Delays{Settle: 500 * time.Millisecond, Submit: 5 * time.Second}
}

// Dispatcher drives the SMS send sequence on one modem.
type Dispatcher struct {
	w      Writer
	clk    clock.Clock
	delays Delays
}

// NewDispatcher returns a Dispatcher writing to w and pacing with clk.
func NewDispatcher(w Writer, clk clock.Clock, delays Delays) *Dispatcher {
	if clk == nil {
		clk = clock.Real()
	}
	def := DefaultDelays()
	if delays.Settle <= 0 {
		delays.Settle = def.Settle
	}
	if delays.Submit <= 0 {
		delays.Submit = def.Submit
	}
	return &Dispatcher{w: w, clk: clk, delays: delays}
}

// SendSMS transmits message to number and blocks for the whole settle
// sequence. Write failures are logged; the sequence always runs to the end.
func (d *Dispatcher) SendSMS(number, message string) {
	if d == nil || d.w == nil {
		return
	}

	d.step("text mode", d.w.WriteLine(cmdTextMode))
	d.clk.Sleep(d.delays.Settle)

	d.step("address", d.w.WriteLine(cmdSend+`"`+number+`"`))
	d.clk.Sleep(d.delays.Settle)

	_, err := d.w.WriteString(message)
	d.step("body", err)
	d.clk.Sleep(d.delays.Settle)

	d.step("submit", d.w.WriteByte(ctrlZ))
	d.clk.Sleep(d.delays.Submit)
}

func (d *Dispatcher) step(name string, err error) {
	if err != nil {
		log.Printf("modem: %s write failed: %v", name, err)
	}
}
