package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jkaberg/devdash/internal/app"
	"github.com/jkaberg/devdash/internal/config"
	"github.com/jkaberg/devdash/internal/indicator"
	"github.com/jkaberg/devdash/internal/mqtt"
	"github.com/jkaberg/devdash/internal/netutil"
	"github.com/jkaberg/devdash/internal/transmission"
	"github.com/jkaberg/devdash/internal/updater"
	"github.com/sirupsen/logrus"
)

// version is injected at build time via ldflags
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, once, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := setupLogger(cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("Invalid configuration")
		return 2
	}

	client := netutil.NewDeviceClient(config.DialTimeout, logger)
	up := updater.New(client, logger)

	bindings := make([]indicator.Binding, 0, len(cfg.Indicators))
	ids := make([]string, 0, len(cfg.Indicators))
	for _, ind := range cfg.Indicators {
		bindings = append(bindings, indicator.Binding{ID: ind.ID, Path: ind.Path, Name: ind.Name})
		ids = append(ids, ind.ID)
	}
	page := indicator.NewPage(ids...)
	board := indicator.NewBoard(page, bindings, logger)

	// One-shot path ---------------------------------------------------------------
	if once {
		return runOnce(cfg, up, board, page, logger)
	}

	logger.WithFields(logrus.Fields{
		"version":    version,
		"device_id":  cfg.DeviceID,
		"endpoint":   cfg.Endpoint,
		"rate":       cfg.Rate,
		"indicators": len(bindings),
		"mqtt_int":   cfg.MQTTInterval,
	}).Info("Starting devdash")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// Transmitters ---------------------------------------------------------------
	var tx transmission.Transmitter
	if cfg.HasMQTT() {
		mqttClient, err := mqtt.NewClient(cfg.MQTTUrl, cfg.DeviceID, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to create MQTT client")
			return 1
		}
		defer mqttClient.Disconnect(250)
		tx = transmission.NewMQTTTransmitter(mqttClient, cfg.DeviceID, cfg.DiscoveryPrefix, bindings, logger)
		logger.Info("MQTT transmitter ready")
	} else {
		logger.Warn("No MQTT broker configured; indicator state will only be logged")
	}

	// Run application ------------------------------------------------------------
	if err := app.Run(ctx, cfg, up, board, tx, logger); err != nil {
		logger.WithError(err).Error("devdash stopped")
		return 1
	}

	logger.Info("devdash stopped")
	return 0
}

// -----------------------------------------------------------------------------
// Helpers & Flags
// -----------------------------------------------------------------------------

func parseFlags(args []string) (*config.Config, bool, error) {
	cfg := config.GetDefaultConfig()
	fs := flag.NewFlagSet("devdash", flag.ContinueOnError)

	showVersion := fs.Bool("version", false, "Show version and exit")
	once := fs.Bool("once", false, "Fetch once, print indicator states and exit")
	configPath := fs.String("config", getEnv("DEVDASH_CONFIG", ""), "YAML config file")

	fs.StringVar(&cfg.Endpoint, "endpoint", getEnv("DEVDASH_ENDPOINT", cfg.Endpoint), "Device JSON endpoint URL")
	fs.StringVar(&cfg.DeviceID, "device-id", getEnv("DEVDASH_DEVICE_ID", cfg.DeviceID), "Device identifier")
	fs.StringVar(&cfg.MQTTUrl, "mqtt-url", getEnv("DEVDASH_MQTT_URL", cfg.MQTTUrl), "MQTT URL")
	fs.StringVar(&cfg.DiscoveryPrefix, "discovery-prefix", getEnv("DEVDASH_DISCOVERY_PREFIX", cfg.DiscoveryPrefix), "HA discovery prefix")
	fs.BoolVar(&cfg.KeepPolling, "keep-polling", getEnv("DEVDASH_KEEP_POLLING", "false") == "true", "Keep polling after fetch errors")
	fs.BoolVar(&cfg.Verbose, "verbose", getEnv("DEVDASH_VERBOSE", "false") == "true", "Verbose logging")

	rateStr := fs.String("rate", getEnv("DEVDASH_RATE", ""), "Polling rate (e.g. 500ms, 2s, or milliseconds)")
	mqttIntervalStr := fs.String("mqtt-interval", getEnv("DEVDASH_MQTT_INTERVAL", ""), "Minimum MQTT publish interval (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	if *showVersion {
		fmt.Printf("devdash %s\n", version)
		os.Exit(0)
	}

	// Duration overrides
	if *rateStr != "" {
		d, err := config.ParseRate(*rateStr)
		if err != nil {
			return nil, false, err
		}
		cfg.Rate = d
	}
	if *mqttIntervalStr != "" {
		d, err := time.ParseDuration(*mqttIntervalStr)
		if err != nil {
			return nil, false, fmt.Errorf("invalid mqtt interval %q: %w", *mqttIntervalStr, err)
		}
		cfg.MQTTInterval = d
	}

	if *configPath != "" {
		fileCfg, err := config.LoadFile(*configPath)
		if err != nil {
			return nil, false, err
		}
		explicit := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		cfg.ApplyFile(fileCfg, func(name string) bool { return explicit[name] })
	}

	return cfg, *once, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setupLogger(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// runOnce fetches the endpoint a single time and prints one line per
// indicator.
func runOnce(cfg *config.Config, up *updater.Updater, board *indicator.Board, page *indicator.Page, logger *logrus.Logger) int {
	data, err := up.Fetch(context.Background(), cfg.Endpoint, cfg.Rate)
	if err != nil {
		logger.WithError(err).Errorf("update error: %s", updater.TextStatus(err))
		return 1
	}

	states := board.Apply(data)
	colors := page.Colors()
	for _, b := range board.Bindings() {
		state := states[b.ID]
		if state == "" {
			state = "unknown"
		}
		name := b.Name
		if name == "" {
			name = b.ID
		}
		fmt.Printf("%-16s %-8s %-10s %s\n", b.ID, state, colors[b.ID], name)
	}
	if len(states) == 0 {
		fmt.Println(data.Raw)
	}
	return 0
}
