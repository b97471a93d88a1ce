// Command ha-sedif polls the SEDIF water portal, derives consumption
// aggregates over the portal's trailing window, and publishes them as
// Home Assistant sensors.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lfpoulain/ha-sedif/internal/aggregate"
	"github.com/lfpoulain/ha-sedif/internal/config"
	"github.com/lfpoulain/ha-sedif/internal/history"
	"github.com/lfpoulain/ha-sedif/internal/publish"
	"github.com/lfpoulain/ha-sedif/internal/runner"
	"github.com/lfpoulain/ha-sedif/internal/server"
	"github.com/lfpoulain/ha-sedif/internal/sink"
	"github.com/lfpoulain/ha-sedif/internal/source"
)

func main() {
	var (
		optionsPath = flag.String("options", envOr("OPTIONS_PATH", config.DefaultOptionsPath), "add-on options.json path")
		once        = flag.Bool("once", false, "run a single fetch/publish cycle and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*optionsPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := buildSource(cfg)
	if err != nil {
		log.Fatalf("source: %v", err)
	}

	snk, err := buildSink(cfg)
	if err != nil {
		log.Fatalf("sink: %v", err)
	}
	defer snk.Close()

	var recorder runner.Recorder
	if cfg.InfluxEnabled {
		rec, err := history.NewRecorder(history.Config{
			URL:    cfg.InfluxURL,
			Org:    cfg.InfluxOrg,
			Token:  cfg.InfluxToken,
			Bucket: cfg.InfluxBucket,
		}, cfg.SensorPrefix)
		if err != nil {
			log.Fatalf("history: %v", err)
		}
		defer rec.Close()
		recorder = rec
	}

	run, err := runner.New(runner.Options{
		Source:     src,
		Publisher:  publish.New(snk, cfg.SensorPrefix),
		Recorder:   recorder,
		PriceM3EUR: cfg.PriceM3EUR,
		Thresholds: aggregate.Thresholds{
			Elevated: cfg.ThresholdElevated,
			High:     cfg.ThresholdHigh,
		},
		Interval:     cfg.RefreshInterval,
		FetchTimeout: cfg.FetchTimeout,
	})
	if err != nil {
		log.Fatalf("runner: %v", err)
	}

	if *once {
		if err := run.RunOnce(ctx); err != nil {
			log.Fatalf("run: %v", err)
		}
		return
	}

	h := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(run).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Fatalf("listen %q: %v", cfg.HTTPAddr, err)
	}
	log.Printf("status HTTP listening on %s, refresh every %s", cfg.HTTPAddr, cfg.RefreshInterval)

	go func() {
		<-ctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := h.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	run.Run(ctx)
}

func buildSource(cfg *config.Config) (source.Source, error) {
	if cfg.SourceFile != "" {
		log.Printf("replaying payloads from %s", cfg.SourceFile)
		return source.NewFile(cfg.SourceFile), nil
	}
	return source.NewPortal(source.PortalConfig{
		BaseURL:  cfg.BaseURL,
		Username: cfg.Username,
		Password: cfg.Password,
		Debug:    cfg.Debug,
	})
}

func buildSink(cfg *config.Config) (sink.Sink, error) {
	switch cfg.Sink {
	case config.SinkMQTT:
		return sink.NewMQTT(sink.MQTTConfig{
			BrokerURL:       cfg.MQTTBrokerURL,
			Username:        cfg.MQTTUsername,
			Password:        cfg.MQTTPassword,
			ClientID:        cfg.MQTTClientID,
			DiscoveryPrefix: cfg.MQTTDiscoveryPrefix,
			BaseTopic:       cfg.MQTTBaseTopic,
		})
	case config.SinkREST:
		return sink.NewREST(sink.RESTConfig{
			URL:   cfg.HAURL,
			Token: cfg.HAToken,
		})
	default:
		log.Printf("dry run: states are logged, not published")
		return sink.NewMemory(true), nil
	}
}

func envOr(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}
