package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sweeney/crowd-signal/internal/auditlog"
	"github.com/sweeney/crowd-signal/internal/config"
	"github.com/sweeney/crowd-signal/internal/controller"
	"github.com/sweeney/crowd-signal/internal/gpio"
	"github.com/sweeney/crowd-signal/internal/metrics"
	"github.com/sweeney/crowd-signal/internal/mqtt"
	"github.com/sweeney/crowd-signal/internal/render"
	"github.com/sweeney/crowd-signal/internal/source"
	"github.com/sweeney/crowd-signal/internal/status"
	"github.com/sweeney/crowd-signal/internal/web"
)

type runOptions struct {
	Stdin  io.Reader
	Stdout io.Writer
	// Raw is set while the terminal is in raw mode.
	Raw bool
}

// run initializes every collaborator, then hands them to the controller. A
// failure during initialization closes whatever was already opened.
func run(ctx context.Context, cfg *config.Config, opts runOptions) (err error) {
	runID := uuid.NewString()

	var opened []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(opened) - 1; i >= 0; i-- {
			opened[i].Close()
		}
	}()

	src, err := openSource(cfg, opts.Stdin)
	if err != nil {
		return fmt.Errorf("init source: %w", err)
	}
	opened = append(opened, src)

	store, history, err := openStore(cfg, runID)
	if err != nil {
		return fmt.Errorf("init log: %w", err)
	}
	opened = append(opened, store)

	renderer, err := openRenderer(cfg, opts)
	if err != nil {
		return fmt.Errorf("init display: %w", err)
	}
	opened = append(opened, renderer)

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			RunID:      runID,
			BufferSize: cfg.MQTT.BufferSize,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
		opened = append(opened, p)
	}

	tracker := status.NewTracker(time.Now(), runID, status.Config{
		Thresholds:  cfg.Thresholds(),
		Source:      describeSource(cfg),
		LogFile:     cfg.LogFilePath,
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if cfg.HTTPAddr != "" {
		webOpts := []web.Option{web.WithMetrics(reg)}
		if history != nil {
			webOpts = append(webOpts, web.WithHistory(history))
		}
		srv := web.New(cfg.HTTPAddr, tracker, webOpts...)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	var summary io.Writer = opts.Stdout
	if opts.Raw {
		summary = crlfWriter{w: opts.Stdout}
	}

	ctrl, err := controller.New(controller.Config{
		Thresholds: cfg.Thresholds(),
		Source:     src,
		Renderer:   renderer,
		Store:      store,
		Publisher:  publisher,
		MQTTStatus: mqttStatus,
		Tracker:    tracker,
		Metrics:    m,
		RunID:      runID,
		Heartbeat:  cfg.Heartbeat,
		Summary:    summary,
	})
	if err != nil {
		return err
	}
	// The controller owns the collaborators from here on.
	opened = nil

	_, err = ctrl.Run(ctx)
	return err
}

func openSource(cfg *config.Config, stdin io.Reader) (source.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceDetector:
		return source.StartDetector(source.DetectorConfig{
			Command:       cfg.Source.DetectorCommand,
			CameraIndex:   cfg.CameraIndex,
			InferenceSize: cfg.InferenceSize,
			Confidence:    cfg.DetectorConfidenceThreshold,
		})
	case config.SourceLines:
		if cfg.Source.Path == "-" {
			return source.NewLineSource("stdin", io.NopCloser(stdin)), nil
		}
		f, err := os.Open(cfg.Source.Path)
		if err != nil {
			return nil, err
		}
		return source.NewLineSource(cfg.Source.Path, f), nil
	case config.SourceSerial:
		return source.OpenSerial(cfg.Source.Path, source.SerialOptions{
			BaudRate: cfg.Source.BaudRate,
			DataBits: cfg.Source.DataBits,
			StopBits: cfg.Source.StopBits,
			Parity:   cfg.Source.Parity,
		})
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Source.Kind)
}

// openStore opens the CSV log and any configured mirrors. history is the
// SQLite mirror when enabled, for serving recent transitions.
func openStore(cfg *config.Config, runID string) (auditlog.Store, web.TransitionLister, error) {
	csvStore, err := auditlog.OpenCSV(cfg.LogFilePath)
	if err != nil {
		return nil, nil, err
	}
	stores := []auditlog.Store{csvStore}
	log.Printf("logging transitions to %s", csvStore.Path())

	var history web.TransitionLister
	if cfg.SQLitePath != "" {
		db, err := auditlog.OpenSQLite(cfg.SQLitePath, runID)
		if err != nil {
			auditlog.Multi(stores...).Close()
			return nil, nil, err
		}
		stores = append(stores, db)
		history = db
	}

	if cfg.Redis.Addr != "" {
		var redisOpts []auditlog.RedisOption
		if cfg.Redis.Stream != "" {
			redisOpts = append(redisOpts, auditlog.WithStream(cfg.Redis.Stream))
		}
		if cfg.Redis.MaxLen > 0 {
			redisOpts = append(redisOpts, auditlog.WithMaxLen(cfg.Redis.MaxLen))
		}
		stores = append(stores, auditlog.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redisOpts...))
	}

	return auditlog.Multi(stores...), history, nil
}

func openRenderer(cfg *config.Config, opts runOptions) (render.Renderer, error) {
	var renderers []render.Renderer
	if cfg.Display.Enabled {
		renderers = append(renderers, render.NewTextRenderer(opts.Stdout, render.TextOptions{
			Redraw: cfg.Display.Redraw,
			CRLF:   opts.Raw,
		}))
	}
	if cfg.Lamps.Enabled {
		lamps, err := gpio.NewRealLamps(cfg.Lamps.Chip, cfg.Lamps.Pins)
		if err != nil {
			return nil, err
		}
		renderers = append(renderers, gpio.NewLampRenderer(lamps))
	}
	return render.Multi(renderers...), nil
}

func describeSource(cfg *config.Config) string {
	switch cfg.Source.Kind {
	case config.SourceDetector:
		return "detector: " + strings.Join(cfg.Source.DetectorCommand, " ")
	default:
		return cfg.Source.Kind + ": " + cfg.Source.Path
	}
}
