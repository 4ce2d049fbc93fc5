package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/parastoo-62/petitions/internal/api"
	"github.com/parastoo-62/petitions/internal/cache"
	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/db"
	"github.com/parastoo-62/petitions/internal/email"
	"github.com/parastoo-62/petitions/internal/emailclass"
	"github.com/parastoo-62/petitions/internal/geo"
	"github.com/parastoo-62/petitions/internal/metrics"
	"github.com/parastoo-62/petitions/internal/pipeline"
	"github.com/parastoo-62/petitions/internal/services"
	"github.com/parastoo-62/petitions/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'svc' (service API only), 'bg' (worker and scheduler), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.SetFormatter(&log.JSONFormatter{})
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	metrics.Register()

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Errorf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		cancelIndex()
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIndex()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Errorf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Email sender selection mirrors the deployment environments: mocked
	// delivery lands in Redis for test harness pickup, real delivery goes
	// out over SMTP.
	var primarySender email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Info("MOCK_SERVICES enabled, using Redis email sender")
		primarySender = email.NewRedisSender(redisClient, cfg)
	} else {
		primarySender = email.NewSMTPSender(cfg)
	}
	compositeSender := email.NewCompositeEmailSender(primarySender)
	if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(logEmailsPath, cfg)
		if err != nil {
			log.WithError(err).Warnf("Failed to initialize file email logger at %s, proceeding without it", logEmailsPath)
		} else {
			compositeSender.AddSender(fileSender)
		}
	}
	emailSender := email.Sender(compositeSender)

	var geoResolver geo.Resolver
	if cfg.ProfileEnrichment && cfg.GeoIPDBPath != "" {
		resolver, err := geo.NewMaxMindResolver(cfg.GeoIPDBPath)
		if err != nil {
			log.WithError(err).Warn("GeoIP database unavailable, profile enrichment disabled")
		} else {
			geoResolver = resolver
			defer resolver.Close()
		}
	}

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	enqueueAlert := func(ctx context.Context, to []string, subject, body string) error {
		_, err := tasks.EnqueueAlertDeliver(ctx, taskClient, tasks.AlertDeliverPayload{
			To:      to,
			Subject: subject,
			Body:    body,
		})
		return err
	}

	stagingService := services.NewStagingService(mongoDb)
	petitionService := services.NewPetitionService(mongoDb)
	userService := services.NewUserService(mongoDb, cfg, geoResolver)
	signatureService := services.NewSignatureService(mongoDb)
	archiveService := services.NewArchiveService(mongoDb, stagingService)
	alertService := services.NewAlertService(cfg, emailSender, enqueueAlert)
	fraudService := services.NewFraudService(cfg, petitionService, alertService, emailclass.NewStaticClassifier())

	processor := pipeline.NewProcessor(cfg, stagingService, petitionService, userService,
		signatureService, archiveService, alertService, fraudService)
	taskProcessor := tasks.NewTaskProcessor(cfg, processor, emailSender)

	var wg sync.WaitGroup

	// Service API always runs; it is how operators observe and poke the
	// worker regardless of mode.
	serviceRouter := api.SetupRouter(cfg, processor, taskClient)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: serviceRouter,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("Service API listening on :%s", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API error: %v", err)
		}
	}()

	runWorker := cfg.RunMode == "bg" || cfg.RunMode == "all"
	if cfg.RunMode != "svc" && !runWorker {
		log.Fatalf("Invalid run mode: %s", cfg.RunMode)
	}

	var taskSrv interface{ Shutdown() }
	var scheduler interface{ Shutdown() }
	if runWorker {
		srv, mux := tasks.NewServer(cfg, taskProcessor)
		taskSrv = srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("Background worker starting")
			if err := srv.Run(mux); err != nil {
				log.Fatalf("Background worker error: %v", err)
			}
		}()

		sched, err := tasks.NewScheduler(cfg)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		scheduler = sched
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Run(); err != nil {
				log.Fatalf("Scheduler error: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infof("Received signal %s, shutting down", sig)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Errorf("Service API shutdown error: %v", err)
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	wg.Wait()
	log.Info("Shutdown complete")
}
