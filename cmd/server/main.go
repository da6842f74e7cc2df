package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	audithandler "vivaha/internal/audit/handler"
	auditmemory "vivaha/internal/audit/store/memory"
	auditpostgres "vivaha/internal/audit/store/postgres"
	"vivaha/internal/platform/config"
	"vivaha/internal/platform/httpserver"
	"vivaha/internal/platform/jwt"
	"vivaha/internal/platform/logger"
	platformredis "vivaha/internal/platform/redis"
	registrationhandler "vivaha/internal/registration/handler"
	"vivaha/internal/registration/lock"
	regmetrics "vivaha/internal/registration/metrics"
	applicationstore "vivaha/internal/registration/store/application"
	certificatestore "vivaha/internal/registration/store/certificate"
	documentstore "vivaha/internal/registration/store/document"

	"vivaha/internal/audit"
	"vivaha/internal/notification"
	"vivaha/internal/outbox"
	"vivaha/internal/registration/service"
	"vivaha/internal/render"
	"vivaha/internal/storage"
	"vivaha/pkg/platform/middleware/auth"
	"vivaha/pkg/platform/middleware/metadata"
	"vivaha/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := regmetrics.New()

	// Storage layer. Without DATABASE_URL the service runs fully in memory,
	// which is how local development and the demo environment operate.
	var (
		applications service.ApplicationStore
		documents    service.DocumentStore
		certificates service.CertificateStore
		auditStore   audit.Store
		storeTx      service.StoreTx = service.NewPassthroughTx()
		db           *sql.DB
	)
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		applications = applicationstore.NewPostgres(db)
		documents = documentstore.NewPostgres(db)
		certificates = certificatestore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		storeTx = newPostgresTx(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		applications = applicationstore.NewInMemory()
		documents = documentstore.NewInMemory()
		certificates = certificatestore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}
	recorder := audit.NewRecorder(auditStore)

	// Advisory per-application lock: Redis when configured, per-process
	// keyed mutex otherwise.
	var locker lock.Locker = lock.NewKeyedMutex()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient.Client)
	}

	// Certificate files: MinIO when configured, in-memory otherwise.
	var files storage.Storage = storage.NewInMemory()
	if cfg.Minio.Endpoint != "" {
		minioStorage, err := storage.NewMinio(storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return err
		}
		if err := minioStorage.EnsureBucket(ctx); err != nil {
			return err
		}
		files = minioStorage
	}

	// Notifications ride Kafka when brokers are configured; the log
	// dispatcher keeps dev environments observable.
	var dispatcher notification.Dispatcher = notification.NewLogDispatcher(log)
	var kafkaClient *kgo.Client
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err = kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.ProducerLinger(5 * time.Millisecond),
		)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		if err := outbox.EnsureTopic(ctx, kafkaClient, cfg.Kafka.AuditTopic); err != nil {
			return err
		}
		if err := outbox.EnsureTopic(ctx, kafkaClient, cfg.Kafka.NotificationTopic); err != nil {
			return err
		}
		dispatcher = notification.NewKafkaDispatcher(kafkaClient, cfg.Kafka.NotificationTopic)
	}

	// Services.
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithStoreTx(storeTx),
	}
	certificateService := service.NewCertificateService(certificates, applications, recorder, render.NewTextRenderer(), files, opts...)
	workflowService := service.NewWorkflowService(applications, documents, recorder, certificateService, dispatcher, locker, opts...)
	documentService := service.NewDocumentService(documents, applications, recorder, dispatcher, files, opts...)

	// HTTP surface.
	jwtService := jwt.NewService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	registrationHandler := registrationhandler.New(workflowService, documentService, certificateService, log)
	auditHandler := audithandler.New(recorder, log)

	router := chi.NewRouter()
	router.Use(metadata.ClientMetadata)
	router.Use(requesttime.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin(&jwtValidator{svc: jwtService}, log))
		registrationHandler.Register(r)
		auditHandler.Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting vivaha admin server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if kafkaClient != nil && db != nil {
		worker := outbox.NewWorker(outbox.NewStore(db), kafkaClient, cfg.Kafka.AuditTopic, cfg.OutboxPollInterval, log)
		group.Go(func() error {
			if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return group.Wait()
}

// jwtValidator adapts the JWT service to the auth middleware contract.
type jwtValidator struct {
	svc *jwt.Service
}

func (v *jwtValidator) ValidateToken(tokenString string) (*auth.Claims, error) {
	claims, err := v.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.Claims{
		UserID: claims.UserID,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}
