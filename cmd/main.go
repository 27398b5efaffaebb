package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"iotdetect/config"
	"iotdetect/db"
	"iotdetect/detection"
	"iotdetect/flow"
	qhttp "iotdetect/http"
	"iotdetect/logging"
	"iotdetect/ml"
	"iotdetect/monitoring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(config.Find(*configPath))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logging
	logger, err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	// 3. Live feed and metrics
	hub := monitoring.NewHub(logging.Named("ws"))
	go hub.Run()
	metrics := monitoring.NewMetrics(hub.ClientCount)

	// 4. Load model artifacts; the service cannot run without them
	onReload := func(name string, err error) {
		metrics.ModelReloaded(name, err)
		status := "ok"
		if err != nil {
			status = err.Error()
		}
		hub.Publish(monitoring.ModelReload, map[string]string{"model": name, "status": status})
	}
	opts := ml.ReloaderOptions{
		ExpectFeatures: flow.NumFeatures,
		CacheSize:      cfg.Model.CacheSize,
		Logger:         logging.Named("model"),
		OnReload:       onReload,
	}

	var reloaders []*ml.Reloader
	classifier, err := ml.NewReloader("classifier", cfg.Model.ClassifierPath, opts)
	if err != nil {
		logger.Fatal("Failed to load classifier", zap.String("path", cfg.Model.ClassifierPath), zap.Error(err))
	}
	reloaders = append(reloaders, classifier)

	pipelineOpts := detection.Options{Policy: cfg.Policy(), Logger: logging.Named("detection")}
	var pipeline detection.Pipeline
	if cfg.Model.Mode == detection.ModeSingleStage {
		pipeline = detection.NewSingleStage(classifier, pipelineOpts)
	} else {
		detector, err := ml.NewReloader("detector", cfg.Model.DetectorPath, opts)
		if err != nil {
			logger.Fatal("Failed to load detector", zap.String("path", cfg.Model.DetectorPath), zap.Error(err))
		}
		reloaders = append(reloaders, detector)
		pipeline = detection.NewTwoStage(detector, classifier, pipelineOpts)
	}
	if cfg.Policy() != flow.FallbackUnknown {
		logger.Warn("unmapped classifier outputs will be shown as benign traffic",
			zap.String("fallback_policy", cfg.Policy().String()))
	}

	// 5. Optional prediction history
	observers := []detection.Observer{metrics, hub}
	if cfg.Database.Path != "" {
		if err := db.InitDB(cfg.Database.Path); err != nil {
			logger.Fatal("Failed to initialize database", zap.String("path", cfg.Database.Path), zap.Error(err))
		}
		defer db.Close()
		observers = append(observers, db.NewRecorder(logging.Named("db")))
		logger.Info("Database initialized", zap.String("path", cfg.Database.Path))
	}

	// 6. Attack alerts
	var alerts *monitoring.AlertSystem
	if len(cfg.Alerts.Channels) > 0 {
		alerts, err = monitoring.NewAlertSystem(cfg.Alerts.Channels, monitoring.RateLimit{
			MaxPerHour: cfg.Alerts.MaxPerHour,
			Cooldown:   cfg.Alerts.Cooldown,
		}, logging.Named("alerts"))
		if err != nil {
			logger.Fatal("Failed to configure alerts", zap.Error(err))
		}
		alerts.Start()
		observers = append(observers, alerts)
	}

	qhttp.SetLogger(logging.Named("http"))
	qhttp.SetPipeline(detection.WithObservers(pipeline, observers...), cfg.Policy())
	qhttp.SetHub(hub)
	qhttp.SetMetrics(metrics)
	qhttp.SetUIConfig(cfg.UI.Title, cfg.UI.ImagePath)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if cfg.Model.Watch {
		for _, r := range reloaders {
			wg.Add(1)
			go func(r *ml.Reloader) {
				defer wg.Done()
				if err := r.Watch(ctx); err != nil {
					logger.Error("model watcher stopped", zap.String("model", r.Info().Name), zap.Error(err))
				}
			}(r)
		}
	}

	// 7. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:         cfg.Http.Port,
		Timeout:      cfg.Http.Timeout,
		MaxBodyBytes: cfg.Http.MaxBodyBytes,
	})
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 8. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	if err := server.Stop(); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}
	cancel()
	wg.Wait()
	hub.Stop()
	if alerts != nil {
		alerts.Stop()
	}

	logger.Info("Exiting")
}
