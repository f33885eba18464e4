package gps

import (
	"log"
	"strings"
	"time"

	"sosbeacon/internal/clock"
)

const (
	// DefaultMarker identifies the recommended-minimum sentence, which
	// carries position, time and velocity.
	DefaultMarker = "GPRMC"

	DefaultPollInterval = 1 * time.Millisecond

	// NMEA caps sentences at 82 bytes; leave headroom for noisy receivers.
	DefaultMaxLineBytes = 256
)

// ByteSource is the receive side of the GPS serial channel.
type ByteSource interface {
	Available() bool
	NextByte() (byte, bool)
}

// Discarder is implemented by sources that can drop bytes queued before a
// capture starts, such as *serial.Port.
type Discarder interface {
	Discard() int
}

// Capturer scans the GPS stream for a single fix sentence.
type Capturer struct {
	src    ByteSource
	clk    clock.Clock
	marker string

	pollInterval time.Duration
	maxLineBytes int

	skipped uint64
}

// Option tunes a Capturer.
type Option func(*Capturer)

// WithPollInterval sets how long to wait when no byte is ready.
func WithPollInterval(d time.Duration) Option {
	return func(c *Capturer) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxLineBytes caps the line buffer. Longer lines are skipped whole.
func WithMaxLineBytes(n int) Option {
	return func(c *Capturer) {
		if n > 0 {
			c.maxLineBytes = n
		}
	}
}

// NewCapturer reads from src using clk for the time budget. An empty marker
// selects DefaultMarker.
func NewCapturer(src ByteSource, clk clock.Clock, marker string, opts ...Option) *Capturer {
	if clk == nil {
		clk = clock.Real()
	}
	if marker == "" {
		marker = DefaultMarker
	}
	c := &Capturer{
		src:          src,
		clk:          clk,
		marker:       marker,
		pollInterval: DefaultPollInterval,
		maxLineBytes: DefaultMaxLineBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Marker is the substring a line must contain to count as a fix.
func (c *Capturer) Marker() string { return c.marker }

// SkippedLines counts lines dropped for exceeding the line cap.
func (c *Capturer) SkippedLines() uint64 {
	if c == nil {
		return 0
	}
	return c.skipped
}

// CaptureFix reads the stream for at most budget and returns the first
// complete line containing the marker, newline included. It returns as soon
// as that line ends. If no such line completes in time the result is empty;
// a partial line at the deadline is discarded.
//
// Bytes queued before the call are dropped first so the fix is never older
// than the press.
func (c *Capturer) CaptureFix(budget time.Duration) string {
	if c == nil || c.src == nil {
		return ""
	}
	if d, ok := c.src.(Discarder); ok {
		d.Discard()
	}
	start := c.clk.Now()

	var line strings.Builder
	overlong := false

	for c.clk.Now().Sub(start) < budget {
		if !c.src.Available() {
			c.clk.Sleep(c.pollInterval)
			continue
		}
		b, ok := c.src.NextByte()
		if !ok {
			continue
		}

		if !overlong {
			line.WriteByte(b)
		}
		if b != '\n' {
			if !overlong && line.Len() > c.maxLineBytes {
				// Skip the rest of this line.
				overlong = true
				line.Reset()
			}
			continue
		}

		if overlong {
			overlong = false
			c.skipped++
			log.Printf("gps: skipped line longer than %d bytes", c.maxLineBytes)
			continue
		}
		s := line.String()
		if strings.Contains(s, c.marker) {
			return s
		}
		line.Reset()
	}
	return ""
}
