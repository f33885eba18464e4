// Package alert runs the SOS poll loop: debounce the button, capture a GPS
// fix, text both recipients and blink the indicator.
//
// Everything happens on the caller's goroutine. Once a press is accepted
// the full sequence runs before the button is looked at again.
package alert

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"sosbeacon/internal/clock"
)

// Trigger reports whether the SOS button is held.
type Trigger interface {
	Active() bool
}

// Indicator is the feedback LED.
type Indicator interface {
	Set(high bool)
	Get() bool
}

// FixSource captures one raw GPS sentence within budget, or returns "".
type FixSource interface {
	CaptureFix(budget time.Duration) string
}

// Sender delivers one SMS.
type Sender interface {
	SendSMS(number, message string)
}

// Deps are the peripherals a Controller drives.
type Deps struct {
	Trigger   Trigger
	Indicator Indicator
	GPS       FixSource
	SMS       Sender
	Clock     clock.Clock
}

// Config holds the timings and message text for an alert.
type Config struct {
	Debounce     time.Duration
	PollInterval time.Duration

	GPSBudget         time.Duration
	InterMessageDelay time.Duration

	BlinkToggles  int
	BlinkInterval time.Duration

	Prefix   string
	FixLabel string
	Fallback string

	Recipients [2]string
}

// DefaultConfig returns the stock timings and text with no recipients set.
func DefaultConfig() Config {
	return Config{
		Debounce:          300 * time.Millisecond,
		PollInterval:      50 * time.Millisecond,
		GPSBudget:         3 * time.Second,
		InterMessageDelay: 2 * time.Second,
		BlinkToggles:      6,
		BlinkInterval:     150 * time.Millisecond,
		Prefix:            "SOS! ",
		FixLabel:          "GPS:",
		Fallback:          "No GPS fix",
	}
}

// Controller holds the debounce state and the injected peripherals.
type Controller struct {
	cfg  Config
	deps Deps

	lastTrigger time.Time
}

// New fills zero timing and text fields from DefaultConfig. Recipients are
// taken as given.
func New(cfg Config, deps Deps) *Controller {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.GPSBudget <= 0 {
		cfg.GPSBudget = def.GPSBudget
	}
	if cfg.InterMessageDelay <= 0 {
		cfg.InterMessageDelay = def.InterMessageDelay
	}
	if cfg.BlinkToggles <= 0 {
		cfg.BlinkToggles = def.BlinkToggles
	}
	if cfg.BlinkInterval <= 0 {
		cfg.BlinkInterval = def.BlinkInterval
	}
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.FixLabel == "" {
		cfg.FixLabel = def.FixLabel
	}
	if cfg.Fallback == "" {
		cfg.Fallback = def.Fallback
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &Controller{cfg: cfg, deps: deps}
}

// Config returns the controller's settings after defaults were applied.
func (c *Controller) Config() Config { return c.cfg }

// LastTrigger is the time the most recent press was accepted, or the zero
// time if none has been.
func (c *Controller) LastTrigger() time.Time { return c.lastTrigger }

// Poll runs one idle cycle and reports whether an alert sequence ran.
func (c *Controller) Poll() bool {
	fired := false
	if c.deps.Trigger != nil && c.deps.Trigger.Active() {
		now := c.deps.Clock.Now()
		if now.Sub(c.lastTrigger) > c.cfg.Debounce {
			// Stamp before the long sequence so bounce and a held button are
			// ignored until it finishes.
			c.lastTrigger = now
			c.runSequence()
			fired = true
		}
	}
	c.deps.Clock.Sleep(c.cfg.PollInterval)
	return fired
}

// Run polls until ctx is done. Cancellation is only observed between
// cycles; an alert in progress always completes.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.Poll()
	}
}

func (c *Controller) runSequence() {
	id := uuid.New()
	start := c.deps.Clock.Now()
	log.Printf("alert id=%s triggered", id)

	c.setIndicator(true)

	var fix string
	if c.deps.GPS != nil {
		fix = c.deps.GPS.CaptureFix(c.cfg.GPSBudget)
	}
	msg := BuildMessage(c.cfg.Prefix, c.cfg.FixLabel, fix, c.cfg.Fallback)
	if fix == "" {
		log.Printf("alert id=%s no gps fix within %s", id, c.cfg.GPSBudget)
	}

	c.send(id, 0, msg)
	c.deps.Clock.Sleep(c.cfg.InterMessageDelay)
	c.send(id, 1, msg)

	for i := 0; i < c.cfg.BlinkToggles; i++ {
		c.toggleIndicator()
		c.deps.Clock.Sleep(c.cfg.BlinkInterval)
	}
	c.setIndicator(false)

	log.Printf("alert id=%s done fix=%t elapsed=%s", id, fix != "", c.deps.Clock.Now().Sub(start))
}

func (c *Controller) send(id uuid.UUID, idx int, msg string) {
	if c.deps.SMS == nil {
		return
	}
	number := c.cfg.Recipients[idx]
	log.Printf("alert id=%s sms recipient=%d number=%s bytes=%d", id, idx+1, number, len(msg))
	c.deps.SMS.SendSMS(number, msg)
}

func (c *Controller) setIndicator(on bool) {
	if c.deps.Indicator != nil {
		c.deps.Indicator.Set(on)
	}
}

func (c *Controller) toggleIndicator() {
	if c.deps.Indicator != nil {
		c.deps.Indicator.Set(!c.deps.Indicator.Get())
	}
}
