package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"tinygo.org/x/bluetooth"

	"github.com/WataNekko/esp-drum-midi-controller/link"
	"github.com/WataNekko/esp-drum-midi-controller/pads"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before
// initLogger is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger) // stdlib log.* now routes through slog
}

// -------------------- Pad layout --------------------

// deviceName is the local name carried in the BLE advertisement.
const deviceName = "ESP MIDI Controller"

// padLayout orders the physical pads. The index doubles as the level-mask
// bit on the serial rig and the pin-table index on hardware. ClosedHiHat
// is absent on purpose: it is only produced by striking the open hi-hat
// while the pedal is held.
var padLayout = []pads.DrumNote{
	pads.BassDrum,
	pads.Snare,
	pads.OpenHiHat,
	pads.PedalHiHat,
	pads.HighTom,
	pads.LowTom,
	pads.FloorTom,
	pads.CrashCymbal1,
	pads.CrashCymbal2,
	pads.RideCymbal,
}

// runner is any component with a blocking service loop.
type runner interface {
	Run(ctx context.Context) error
}

// -------------------- Main --------------------

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (adds source location)")
	serialDev := flag.String("serial", "/dev/ttyACM0", "pad sensor board serial device")
	baud := flag.Int("baud", 115200, "pad sensor board baud rate")
	midiOut := flag.String("midiout", "", "play hits on a local MIDI output matching this name instead of BLE")
	flag.Parse()

	initLogger(*debug)
	logger.Info("drum controller starting",
		"pads", len(padLayout),
		"device_name", deviceName,
		"debug", *debug,
	)

	status := pads.NewStatusSignal()
	queue := pads.NewHitQueue()

	source, pins, srcCleanup, err := openPadSource(*serialDev, *baud)
	if err != nil {
		logger.Error("pad source init failed", "err", err)
		os.Exit(1)
	}
	defer srcCleanup()

	cfg := make([]pads.PadConfig, len(padLayout))
	for i, note := range padLayout {
		cfg[i] = pads.PadConfig{Pin: pins[i], Note: note}
	}
	bank := pads.NewSensorBank(cfg, status, queue, logger)

	sink, sinkCleanup, err := openHitSink(*midiOut, status, queue)
	if err != nil {
		logger.Error("hit sink init failed", "err", err)
		os.Exit(1)
	}
	defer sinkCleanup()

	ctx, stop := rootContext()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return source.Run(gctx) })
	g.Go(func() error { return bank.Run(gctx) })
	g.Go(func() error { return sink.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

// openBLE builds the production link stack; shared by every build.
func openBLE(status *pads.StatusSignal, queue *pads.HitQueue, led link.StatusLED) (runner, error) {
	radio, err := link.NewBluetoothRadio(bluetooth.DefaultAdapter, deviceName, logger)
	if err != nil {
		return nil, err
	}
	return link.NewManager(radio, status, queue, led, logger), nil
}
