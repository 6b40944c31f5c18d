package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kmankuan/ChiPiLink-sub010/internal/api"
	"github.com/kmankuan/ChiPiLink-sub010/internal/api/handlers"
	"github.com/kmankuan/ChiPiLink-sub010/internal/api/middleware"
	"github.com/kmankuan/ChiPiLink-sub010/internal/config"
	"github.com/kmankuan/ChiPiLink-sub010/internal/dispatch"
	"github.com/kmankuan/ChiPiLink-sub010/internal/events"
	"github.com/kmankuan/ChiPiLink-sub010/internal/history"
	"github.com/kmankuan/ChiPiLink-sub010/internal/jobstore"
	"github.com/kmankuan/ChiPiLink-sub010/internal/logger"
	"github.com/kmankuan/ChiPiLink-sub010/internal/metrics"
	"github.com/kmankuan/ChiPiLink-sub010/internal/printer"
	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the agent config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init("printagent", cfg.Logging.Level, cfg.Logging.Format)
	log.Info().Str("config", *configPath).Msg("starting print agent")

	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open history store")
	}
	defer hist.Close()

	store := jobstore.New(jobstore.Config{
		BaseURL:    cfg.JobAPI.BaseURL,
		Token:      cfg.JobAPI.Token,
		Timeout:    cfg.JobAPI.Timeout,
		MaxRetries: uint64(cfg.JobAPI.MaxRetries),
	}, log)

	spooler := printer.NewSpooler(printer.SpoolerConfig{
		Command:      cfg.Printer.Spooler.Command,
		Args:         cfg.Printer.Spooler.Args,
		PaperProfile: receipt.PaperProfile(cfg.Printer.Spooler.PaperProfile),
	}, log)

	var hardware *printer.Hardware
	var hardwareDriver dispatch.Driver
	if cfg.Printer.Hardware.Enabled {
		hardware = printer.NewHardware(printer.HardwareConfig{
			Address:           cfg.Printer.Hardware.Address,
			Port:              cfg.Printer.Hardware.Port,
			PaperProfile:      receipt.PaperProfile(cfg.Printer.Hardware.PaperProfile),
			DialTimeout:       cfg.Printer.Hardware.DialTimeout,
			HeartbeatInterval: cfg.Printer.Hardware.HeartbeatInterval,
		}, log)
		hardware.Start()
		defer hardware.Stop()
		hardwareDriver = hardware
	}

	notifier := dispatch.NewLogNotifier(log)
	tracker := dispatch.NewTracker(store, notifier, hist, cfg.Print.CompletionTimeout, log)

	dispatcher := dispatch.New(dispatch.Config{
		QueueSize:    cfg.Print.QueueSize,
		FetchTimeout: cfg.JobAPI.Timeout,
		AutoPrint:    cfg.Print.AutoPrint,
		Layout:       cfg.Print.Layout,
	}, store, hardwareDriver, spooler, tracker, notifier, log)
	dispatcher.Start()

	listener := events.NewListener(dispatcher, log)

	var stopSource func()
	switch cfg.Events.Transport {
	case "nats":
		source := events.NewNATSSource(events.NATSConfig{
			URL:     cfg.Events.URL,
			Subject: cfg.Events.Subject,
		}, listener, log)
		if err := source.Start(); err != nil {
			log.Fatal().Err(err).Msg("connect event stream")
		}
		stopSource = source.Stop
	default:
		source := events.NewWebsocketSource(events.WebsocketConfig{
			URL:          cfg.Events.URL,
			ReconnectMin: cfg.Events.ReconnectMin,
			ReconnectMax: cfg.Events.ReconnectMax,
		}, listener, log)
		source.Start()
		stopSource = source.Stop
	}

	gaugeStop := make(chan struct{})
	go connectivityGauge(hardware, gaugeStop)

	auth := middleware.NewAuthMiddleware(cfg.Auth)
	router := api.NewRouter(auth,
		handlers.NewJobHandler(dispatcher, hist),
		handlers.NewPrinterHandler(hardware, spooler),
		log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("operator api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	stopSource()
	close(gaugeStop)
	dispatcher.Stop()
	spooler.Wait()

	log.Info().Msg("agent stopped")
}

// connectivityGauge mirrors the hardware heartbeat into the prometheus gauge.
// With no hardware configured the gauge reads zero for the process lifetime.
func connectivityGauge(hardware *printer.Hardware, stop <-chan struct{}) {
	set := func() {
		if hardware != nil && hardware.Connected() {
			metrics.PrinterConnected.Set(1)
		} else {
			metrics.PrinterConnected.Set(0)
		}
	}
	set()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			set()
		case <-stop:
			return
		}
	}
}
