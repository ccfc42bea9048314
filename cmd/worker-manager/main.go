package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"booking-assistant/internal/booking/datetime"
	"booking-assistant/internal/booking/extractor"
	"booking-assistant/internal/booking/history"
	"booking-assistant/internal/booking/intent"
	"booking-assistant/internal/booking/orchestrator"
	"booking-assistant/internal/booking/slots"
	"booking-assistant/internal/collab/audit"
	"booking-assistant/internal/collab/booking"
	"booking-assistant/internal/collab/calendar"
	"booking-assistant/internal/collab/genai"
	"booking-assistant/internal/collab/notify"
	"booking-assistant/internal/collab/persistence"
	"booking-assistant/internal/collab/rag"
	"booking-assistant/internal/common/aws"
	"booking-assistant/internal/common/camunda"
	"booking-assistant/internal/common/config"
	"booking-assistant/internal/common/database"
	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/common/metrics"
	"booking-assistant/internal/common/observability"

	listbookings "booking-assistant/internal/workers/booking/list-bookings"
	handleturn "booking-assistant/internal/workers/conversation/handle-turn"
)

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.FromConfig(cfg.Logging)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("starting booking assistant", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx := context.Background()

	obs := observability.New(cfg.Observability, log)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fatal(log, "postgres client", err)
	}
	defer pg.Close()
	if err := retryWithBackoff(func() error { return pg.Ping(ctx) }, 15, 2*time.Second, log, "PostgreSQL connection"); err != nil {
		fatal(log, "postgres", err)
	}
	bookings := persistence.NewPostgresStore(pg.DB, log)
	if err := bookings.Migrate(ctx); err != nil {
		fatal(log, "bookings migration", err)
	}

	var rdb *database.RedisClient
	if needsRedis(cfg.Booking) {
		rdb = database.NewRedis(cfg.Database.Redis)
		defer rdb.Close()
		if err := retryWithBackoff(func() error { return rdb.Ping(ctx) }, 10, 2*time.Second, log, "Redis connection"); err != nil {
			fatal(log, "redis", err)
		}
	}

	observers := []slots.TransitionObserver{metrics.TransitionCounter{}}
	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			fatal(log, "elasticsearch client", err)
		}
		if err := retryWithBackoff(func() error { return es.Ping(ctx) }, 5, 2*time.Second, log, "Elasticsearch connection"); err != nil {
			log.Warn("audit trail disabled", map[string]interface{}{"error": err.Error()})
		} else {
			observers = append(observers, audit.NewElasticsearchSink(es.Client, cfg.Database.Elasticsearch.AuditIndex, log))
		}
	}

	orch := buildOrchestrator(cfg, log, obs, rdb, bookings, observers)

	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda)
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		fatal(log, "zeebe client", err)
	}
	log.Info("zeebe client connected", map[string]interface{}{"broker": cfg.Camunda.BrokerAddress})

	turns, err := handleturn.NewHandler(handleturn.HandlerOptions{AppConfig: cfg, Orchestrator: orch, Logger: log})
	if err != nil {
		fatal(log, "handle-turn handler", err)
	}
	lister, err := listbookings.NewHandler(listbookings.HandlerOptions{AppConfig: cfg, Store: bookings, Logger: log})
	if err != nil {
		fatal(log, "list-bookings handler", err)
	}

	var workers []*camunda.Worker
	if c := turns.Config(); c.Enabled {
		workers = append(workers, camunda.NewWorker(camundaClient.Zeebe(), handleturn.TaskType, c.MaxJobsActive, c.Timeout, turns, log))
	} else {
		log.Info("worker disabled", map[string]interface{}{"taskType": handleturn.TaskType})
	}
	if c := lister.Config(); c.Enabled {
		workers = append(workers, camunda.NewWorker(camundaClient.Zeebe(), listbookings.TaskType, c.MaxJobsActive, c.Timeout, lister, log))
	} else {
		log.Info("worker disabled", map[string]interface{}{"taskType": listbookings.TaskType})
	}

	server := &http.Server{
		Addr:              httpAddress(cfg.App),
		Handler:           routes(camundaClient, pg, rdb),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("health and metrics server listening", map[string]interface{}{"address": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health and metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping workers", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping http server", map[string]interface{}{"error": err.Error()})
	}
	if err := camundaClient.Close(); err != nil {
		log.Error("error closing zeebe client", map[string]interface{}{"error": err.Error()})
	}
	obs.Shutdown(shutdownCtx)

	log.Info("booking assistant stopped", nil)
}

func buildOrchestrator(cfg *config.Config, log logger.Logger, obs *observability.Observability, rdb *database.RedisClient, bookings *persistence.PostgresStore, observers []slots.TransitionObserver) *orchestrator.Orchestrator {
	bc := cfg.Booking
	loc := bc.Location()

	resolver := datetime.NewResolver(datetime.Options{
		DefaultLocation: loc,
		DefaultHour:     bc.DefaultDaypartHour,
		DefaultMinute:   bc.DefaultDaypartMinute,
	})

	model := genai.NewClient(genai.Config{
		BaseURL:    cfg.APIs.GenAI.BaseURL,
		APIKey:     cfg.APIs.GenAI.APIKey,
		Timeout:    config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxRetries: cfg.APIs.GenAI.MaxRetries,
	}, log)

	var classifier intent.Classifier = intent.NewRuleClassifier(resolver)
	if bc.Classifier.Mode == "llm" {
		classifier = intent.NewLLMClassifier(model)
	}
	var extract extractor.Extractor = extractor.NewRuleExtractor(extractor.Options{
		Spans:              resolver,
		DefaultCountryCode: bc.DefaultCountryCode,
	})
	if bc.Extractor.Mode == "llm" {
		extract = extractor.NewLLMExtractor(model, bc.DefaultCountryCode)
	}

	stateTTL := time.Duration(bc.StateTTL) * time.Second
	var (
		store  slots.Store     = slots.NewMemoryStore()
		locker slots.Locker    = slots.NewLocalLocker()
		memory history.History = history.NewMemory(bc.HistoryWindow)
	)
	if bc.StateStore == "redis" {
		store = slots.NewRedisStore(rdb.Client, stateTTL)
		memory = history.NewRedis(rdb.Client, bc.HistoryWindow, stateTTL)
	}
	if bc.Lock.Backend == "redis" {
		locker = slots.NewRedisLocker(rdb.Client, config.GetDuration(bc.Lock.TTL), config.GetDuration(bc.Lock.RetryInterval), log)
	}

	cal := calendar.NewClient(calendar.Config{
		BaseURL:    cfg.APIs.Calendar.BaseURL,
		Timeout:    config.GetDuration(cfg.APIs.Calendar.Timeout),
		MaxRetries: cfg.APIs.Calendar.MaxRetries,
	}, log)

	answers := rag.NewClient(rag.Config{
		BaseURL:    cfg.APIs.RAG.BaseURL,
		APIKey:     cfg.APIs.RAG.APIKey,
		Timeout:    config.GetDuration(cfg.APIs.RAG.Timeout),
		MaxRetries: cfg.APIs.RAG.MaxRetries,
	}, log)

	service := booking.NewService(booking.Config{
		MeetingDuration: time.Duration(bc.MeetingDuration) * time.Minute,
		TitleTemplate:   bc.MeetingTitleTemplate,
	}, cal, bookings, buildNotifier(cfg, loc, log), log)

	return orchestrator.New(orchestrator.Options{
		Classifier: classifier,
		Extractor:  extract,
		Resolver:   resolver,
		Slots: slots.NewManager(slots.Options{
			Store:     store,
			Logger:    log,
			Observers: observers,
		}),
		Locker:              locker,
		History:             memory,
		RAG:                 answers,
		Booker:              service,
		Logger:              log,
		Tracer:              obs.Tracer(),
		Recorder:            obs,
		Location:            loc,
		ClassifierTimeout:   config.GetDuration(bc.Classifier.Timeout),
		ExtractorTimeout:    config.GetDuration(bc.Extractor.Timeout),
		CollaboratorTimeout: config.GetDuration(bc.CollaboratorTimeout),
	})
}

// buildNotifier returns nil when neither channel is enabled
func buildNotifier(cfg *config.Config, loc *time.Location, log logger.Logger) booking.Notifier {
	nc := cfg.Notifications
	if !nc.Email.Enabled && !nc.SMS.Enabled {
		return nil
	}

	awsCfg, err := aws.LoadConfig(context.Background(), nc.AWS.Region)
	if err != nil {
		log.Warn("notifications disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var (
		email notify.EmailSender
		sms   notify.SMSSender
	)
	if nc.Email.Enabled {
		email = aws.NewSESClient(awsCfg)
	}
	if nc.SMS.Enabled {
		sms = aws.NewSNSClient(awsCfg)
	}
	return notify.New(notify.Config{
		FromEmail: nc.Email.FromEmail,
		SenderID:  nc.SMS.SenderID,
		Location:  loc,
	}, email, sms, log)
}

func needsRedis(bc config.BookingConfig) bool {
	return bc.StateStore == "redis" || bc.Lock.Backend == "redis"
}

func httpAddress(app config.AppConfig) string {
	if app.HTTPAddress != "" {
		return app.HTTPAddress
	}
	return ":8080"
}

func routes(zeebe *camunda.Client, pg *database.PostgresClient, rdb *database.RedisClient) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"zeebe": "ok", "postgres": "ok"}
		status := http.StatusOK
		if err := zeebe.HealthCheck(ctx); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := pg.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func fatal(log logger.Logger, what string, err error) {
	log.Error(what+" failed", map[string]interface{}{"error": err.Error()})
	os.Exit(1)
}
