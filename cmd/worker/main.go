package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/reclaim/internal/config"
	"github.com/your-org/reclaim/internal/features"
	"github.com/your-org/reclaim/internal/matching"
	"github.com/your-org/reclaim/internal/models"
	"github.com/your-org/reclaim/internal/observability"
	"github.com/your-org/reclaim/internal/queue"
	"github.com/your-org/reclaim/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting Reclaim matching worker",
		"workers", cfg.Features.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Initialize ONNX Runtime for embedding and text recognition
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed, embedding and text signals disabled", "error", err)
	} else {
		defer ort.DestroyEnvironment()
	}

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Feature extractor; models that fail to load only disable their signal
	extractor, err := features.NewExtractor(cfg.Features)
	if err != nil {
		slog.Error("init feature extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	pipeline := matching.NewPipeline(cfg.Matching, extractor, db, minioStore, producer)
	sweeper := matching.NewSweeper(db, producer, cfg.Matching)

	slog.Info("matching pipeline initialized")

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming photo tasks
	err = consumer.ConsumePhotoTasks(ctx, "match-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.PhotoTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal photo task", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := pipeline.ProcessPhoto(ctx, task); err != nil {
			return fmt.Errorf("process photo %s: %w", task.PhotoID, err)
		}

		return nil
	}, cfg.Features.WorkerCount)
	if err != nil {
		slog.Error("start photo task consumer", "error", err)
		os.Exit(1)
	}

	// Case close / delete control messages expire open matches immediately
	sub, err := consumer.SubscribeCaseControl(func(data []byte) {
		var ctrl models.CaseControl
		if err := json.Unmarshal(data, &ctrl); err != nil {
			slog.Error("unmarshal case control", "error", err)
			return
		}
		if ctrl.CaseID == uuid.Nil {
			return
		}
		if err := sweeper.ExpireCase(ctx, ctrl.CaseID); err != nil {
			slog.Error("expire matches for case", "case_id", ctrl.CaseID, "error", err)
		}
	})
	if err != nil {
		slog.Error("subscribe case control", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sub.Unsubscribe() }()

	// Retention sweep
	go sweeper.Run(ctx)

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
