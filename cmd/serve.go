package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduard256/imgable-ai/internal/cluster"
	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/database"
	"github.com/eduard256/imgable-ai/internal/imaging"
	"github.com/eduard256/imgable-ai/internal/logger"
	"github.com/eduard256/imgable-ai/internal/metrics"
	"github.com/eduard256/imgable-ai/internal/modelcache"
	"github.com/eduard256/imgable-ai/internal/ocr"
	"github.com/eduard256/imgable-ai/internal/tagger"
	"github.com/eduard256/imgable-ai/internal/vision"
	"github.com/eduard256/imgable-ai/internal/web"
	"github.com/eduard256/imgable-ai/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis worker and control API",
	Long: `Start the background analysis service: connect to PostgreSQL, apply
pending migrations, seed the face gallery, and serve the control API.
The worker starts automatically when AI_AUTO_START is set (the default)
and can be driven at runtime via POST /api/v1/run and /api/v1/stop.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides API_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides API_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.API.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.API.Host = host
	}

	log := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  os.Getenv("LOG_FORMAT"),
		Service: "imgable-ai",
	})
	log.Infof("connecting to PostgreSQL")

	pool, err := database.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer pool.Close()

	queueRepo := database.NewQueueRepository(pool)
	photoRepo := database.NewPhotoRepository(pool)
	personRepo := database.NewPersonRepository(pool)
	tagRepo := database.NewTagRepository(pool)

	models := modelcache.NewManager(
		cfg.Paths.Models, cfg.Models.Repo, cfg.Worker.Threads, cfg.Models.TTLSeconds, log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clusterer := cluster.New(personRepo, cfg.Cluster.Threshold, log)
	gallery, err := personRepo.LoadGallery(ctx)
	if err != nil {
		return fmt.Errorf("loading face gallery: %w", err)
	}
	clusterer.Seed(gallery)
	log.Infof("face gallery seeded with %d faces", clusterer.Size())

	imageTagger := tagger.New(models, cfg.Tags, log)
	ocrProcessor := ocr.NewProcessor(ocr.NewRecognizer(models), cfg.OCR, log)
	promMetrics := metrics.NewDefault()

	w := worker.New(worker.Deps{
		Config:   cfg,
		Queue:    queueRepo,
		Photos:   photoRepo,
		Faces:    personRepo,
		Tags:     tagRepo,
		Detector: vision.NewDetector(models, cfg.Faces),
		Embedder: vision.NewEmbedder(models, log),
		Assigner: clusterer,
		Tagger:   imageTagger,
		OCR:      ocrProcessor,
		LoadImage: func(photoID string) (image.Image, error) {
			return imaging.LoadPreview(cfg.Paths.Media, photoID)
		},
		Metrics: promMetrics,
		Log:     log,
	})

	server := web.NewServer(web.Deps{
		Config:  cfg,
		Worker:  w,
		Queue:   queueRepo,
		Models:  models,
		Log:     log,
		Version: Version,
	})

	if cfg.Models.Preload {
		go models.PreloadAll(ctx)
	}
	if cfg.Worker.AutoStart {
		if err := w.Start(ctx); err != nil {
			log.WithError(err).Warn("auto-start failed")
		}
	}

	go runMaintenance(ctx, cfg, w, queueRepo, models, imageTagger, promMetrics, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down")
		if err := w.Stop(); err != nil && err != worker.ErrNotRunning {
			log.WithError(err).Warn("stopping worker")
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown error")
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
