package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Trigger   TriggerConfig   `yaml:"trigger"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Diag      SerialConfig    `yaml:"diag"`
	Modem     ModemConfig     `yaml:"modem"`
	GPS       GPSConfig       `yaml:"gps"`
	SMS       SMSConfig       `yaml:"sms"`
	Loop      LoopConfig      `yaml:"loop"`
}

type TriggerConfig struct {
	// Chip is the preferred gpiochip; all chips are searched if the line is
	// not found there.
	Chip string `yaml:"chip"`
	// Pin is BCM GPIO numbering. The button pulls it to ground.
	Pin      int           `yaml:"pin"`
	Debounce time.Duration `yaml:"debounce"`
}

type IndicatorConfig struct {
	Chip          string        `yaml:"chip"`
	Pin           int           `yaml:"pin"`
	BlinkToggles  int           `yaml:"blink_toggles"`
	BlinkInterval time.Duration `yaml:"blink_interval"`
}

type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type ModemConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	SubmitDelay time.Duration `yaml:"submit_delay"`
}

type GPSConfig struct {
	Device string        `yaml:"device"`
	Baud   int           `yaml:"baud"`
	Marker string        `yaml:"marker"`
	Budget time.Duration `yaml:"budget"`
}

type SMSConfig struct {
	Recipients        []string      `yaml:"recipients"`
	Prefix            string        `yaml:"prefix"`
	FixLabel          string        `yaml:"fix_label"`
	Fallback          string        `yaml:"fallback"`
	InterMessageDelay time.Duration `yaml:"inter_message_delay"`
}

type LoopConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	StartupDelay time.Duration `yaml:"startup_delay"`
}

// Default BCM lines for the button and the LED.
const (
	DefaultTriggerPin   = 17
	DefaultIndicatorPin = 27
)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Pins are seeded before decoding because 0 is a valid BCM line; an
	// explicit "pin: 0" overrides the seed, an absent key keeps it.
	cfg := Config{
		Trigger:   TriggerConfig{Pin: DefaultTriggerPin},
		Indicator: IndicatorConfig{Pin: DefaultIndicatorPin},
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config contains invalid or unknown fields: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Trigger.Chip == "" {
		cfg.Trigger.Chip = "/dev/gpiochip0"
	}
	if cfg.Trigger.Debounce <= 0 {
		cfg.Trigger.Debounce = 300 * time.Millisecond
	}

	if cfg.Indicator.Chip == "" {
		cfg.Indicator.Chip = "/dev/gpiochip0"
	}
	if cfg.Indicator.BlinkToggles <= 0 {
		cfg.Indicator.BlinkToggles = 6
	}
	if cfg.Indicator.BlinkInterval <= 0 {
		cfg.Indicator.BlinkInterval = 150 * time.Millisecond
	}

	if cfg.Diag.Baud == 0 {
		cfg.Diag.Baud = 9600
	}

	if cfg.Modem.Baud == 0 {
		cfg.Modem.Baud = 9600
	}
	if cfg.Modem.SettleDelay <= 0 {
		cfg.Modem.SettleDelay = 500 * time.Millisecond
	}
	if cfg.Modem.SubmitDelay <= 0 {
		cfg.Modem.SubmitDelay = 5 * time.Second
	}

	if cfg.GPS.Baud == 0 {
		cfg.GPS.Baud = 9600
	}
	if cfg.GPS.Marker == "" {
		cfg.GPS.Marker = "GPRMC"
	}
	if cfg.GPS.Budget <= 0 {
		cfg.GPS.Budget = 3 * time.Second
	}

	if cfg.SMS.Prefix == "" {
		cfg.SMS.Prefix = "SOS! "
	}
	if cfg.SMS.FixLabel == "" {
		cfg.SMS.FixLabel = "GPS:"
	}
	if cfg.SMS.Fallback == "" {
		cfg.SMS.Fallback = "No GPS fix"
	}
	if cfg.SMS.InterMessageDelay <= 0 {
		cfg.SMS.InterMessageDelay = 2 * time.Second
	}

	if cfg.Loop.PollInterval <= 0 {
		cfg.Loop.PollInterval = 50 * time.Millisecond
	}
	if cfg.Loop.StartupDelay <= 0 {
		cfg.Loop.StartupDelay = 1 * time.Second
	}
}

func validate(cfg Config) error {
	if len(cfg.SMS.Recipients) != 2 {
		return fmt.Errorf("sms.recipients must list exactly 2 numbers")
	}
	for i, n := range cfg.SMS.Recipients {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("sms.recipients[%d] is empty", i)
		}
		// The number is sent inside a quoted AT command argument.
		if strings.ContainsRune(n, '"') || hasControlChars(n) {
			return fmt.Errorf("sms.recipients[%d] must not contain quotes or control characters", i)
		}
	}
	if cfg.SMS.Recipients[0] == cfg.SMS.Recipients[1] {
		return fmt.Errorf("sms.recipients must be two different numbers")
	}
	if strings.ContainsRune(cfg.SMS.Prefix+cfg.SMS.FixLabel+cfg.SMS.Fallback, 26) {
		return fmt.Errorf("sms text must not contain the Ctrl+Z terminator")
	}

	if strings.TrimSpace(cfg.Modem.Device) == "" {
		return fmt.Errorf("modem.device is required")
	}
	if strings.TrimSpace(cfg.GPS.Device) == "" {
		return fmt.Errorf("gps.device is required")
	}
	if sameDevice(cfg.Modem.Device, cfg.GPS.Device) {
		return fmt.Errorf("modem.device and gps.device must differ")
	}
	if cfg.Diag.Device != "" && (sameDevice(cfg.Diag.Device, cfg.Modem.Device) || sameDevice(cfg.Diag.Device, cfg.GPS.Device)) {
		return fmt.Errorf("diag.device must differ from modem.device and gps.device")
	}

	if cfg.Trigger.Pin < 0 || cfg.Indicator.Pin < 0 {
		return fmt.Errorf("gpio pins must be >= 0")
	}
	if cfg.Trigger.Pin == cfg.Indicator.Pin && cfg.Trigger.Chip == cfg.Indicator.Chip {
		return fmt.Errorf("trigger.pin and indicator.pin must differ")
	}
	return nil
}

func sameDevice(a, b string) bool {
	return filepath.Clean(strings.TrimSpace(a)) == filepath.Clean(strings.TrimSpace(b))
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
