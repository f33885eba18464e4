package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"sosbeacon/internal/alert"
	"sosbeacon/internal/clock"
	"sosbeacon/internal/config"
	"sosbeacon/internal/gpio"
	"sosbeacon/internal/gps"
	"sosbeacon/internal/modem"
	"sosbeacon/internal/serial"
)

var version = "v0.0.0"

var cli struct {
	Config  string `short:"c" default:"./sosbeacon.yaml" help:"Path to YAML config."`
	Version bool   `help:"Print version and exit."`
}

type inputPin interface {
	Active() bool
	Close() error
}

type outputPin interface {
	Set(high bool)
	Get() bool
	Close() error
}

var openSerialFn = serial.Open

var openInputFn = func(chip string, pin int) (inputPin, error) {
	return gpio.OpenInput(chip, pin)
}

var openOutputFn = func(chip string, pin int) (outputPin, error) {
	return gpio.OpenOutput(chip, pin)
}

func main() {
	kong.Parse(&cli,
		kong.Name("sosbeacon"),
		kong.Description("SOS button: GPS fix to SMS over a cellular modem."),
		kong.UsageOnError(),
	)

	if cli.Version {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, clock.Real()); err != nil {
		log.Fatalf("sosbeacon: %v", err)
	}
}

// peripherals are the four endpoints the alert loop talks to.
type peripherals struct {
	trigger   alert.Trigger
	indicator alert.Indicator
	gps       gps.ByteSource
	modem     modem.Writer
}

func run(ctx context.Context, cfg config.Config, clk clock.Clock) error {
	if cfg.Diag.Device != "" {
		diag, err := openSerialFn(cfg.Diag.Device, cfg.Diag.Baud)
		if err != nil {
			return fmt.Errorf("diag serial: %w", err)
		}
		defer diag.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, diag))
		defer log.SetOutput(os.Stderr)
	}

	modemPort, err := openSerialFn(cfg.Modem.Device, cfg.Modem.Baud)
	if err != nil {
		return fmt.Errorf("modem serial: %w", err)
	}
	defer modemPort.Close()

	gpsPort, err := openSerialFn(cfg.GPS.Device, cfg.GPS.Baud)
	if err != nil {
		return fmt.Errorf("gps serial: %w", err)
	}
	defer gpsPort.Close()

	button, err := openInputFn(cfg.Trigger.Chip, cfg.Trigger.Pin)
	if err != nil {
		return fmt.Errorf("trigger gpio: %w", err)
	}
	defer button.Close()

	led, err := openOutputFn(cfg.Indicator.Chip, cfg.Indicator.Pin)
	if err != nil {
		return fmt.Errorf("indicator gpio: %w", err)
	}
	defer led.Close()

	log.Printf("sosbeacon %s starting", version)
	log.Printf("modem device=%s baud=%d", cfg.Modem.Device, cfg.Modem.Baud)
	log.Printf("gps device=%s baud=%d marker=%s budget=%s", cfg.GPS.Device, cfg.GPS.Baud, cfg.GPS.Marker, cfg.GPS.Budget)
	log.Printf("trigger pin=%d debounce=%s indicator pin=%d", cfg.Trigger.Pin, cfg.Trigger.Debounce, cfg.Indicator.Pin)

	ctrl := newController(cfg, peripherals{trigger: button, indicator: led, gps: gpsPort, modem: modemPort}, clk)

	// Let the modem and receiver finish booting.
	clk.Sleep(cfg.Loop.StartupDelay)
	log.Printf("Ready")

	err = ctrl.Run(ctx)
	log.Printf("sosbeacon stopping")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newController(cfg config.Config, p peripherals, clk clock.Clock) *alert.Controller {
	capturer := gps.NewCapturer(p.gps, clk, cfg.GPS.Marker)
	dispatcher := modem.NewDispatcher(p.modem, clk, modem.Delays{
		Settle: cfg.Modem.SettleDelay,
		Submit: cfg.Modem.SubmitDelay,
	})

	var recipients [2]string
	copy(recipients[:], cfg.SMS.Recipients)

	return alert.New(alert.Config{
		Debounce:          cfg.Trigger.Debounce,
		PollInterval:      cfg.Loop.PollInterval,
		GPSBudget:         cfg.GPS.Budget,
		InterMessageDelay: cfg.SMS.InterMessageDelay,
		BlinkToggles:      cfg.Indicator.BlinkToggles,
		BlinkInterval:     cfg.Indicator.BlinkInterval,
		Prefix:            cfg.SMS.Prefix,
		FixLabel:          cfg.SMS.FixLabel,
		Fallback:          cfg.SMS.Fallback,
		Recipients:        recipients,
	}, alert.Deps{
		Trigger:   p.trigger,
		Indicator: p.indicator,
		GPS:       capturer,
		SMS:       dispatcher,
		Clock:     clk,
	})
}
