// Package clock abstracts the time source and blocking waits used by the
// alert loop so tests can advance time without sleeping.
package clock

import "time"

// Clock is the time capability shared by the GPS capture, the modem
// dispatcher and the alert controller.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
