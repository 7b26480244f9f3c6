// Command ruleengine-server runs the rule engine's admin HTTP surface: it
// boots the on-disk rule registry, starts the scheduler, and serves the
// application-data ingest endpoint plus CRUD/control endpoints over the
// in-memory façade.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnivaCorporation/policyengine/internal/actionrunner"
	"github.com/UnivaCorporation/policyengine/internal/config"
	"github.com/UnivaCorporation/policyengine/internal/middleware"
	"github.com/UnivaCorporation/policyengine/internal/observability"
	"github.com/UnivaCorporation/policyengine/internal/ruleengine"
	"github.com/UnivaCorporation/policyengine/internal/storage"
	"github.com/UnivaCorporation/policyengine/pkg/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	version = "dev"
	commit  = "unknown"
	tracer  oteltrace.Tracer
)

func main() {
	configPath := flag.String("config", "", "path to config file (yaml/json/toml, viper-discovered)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()
	if err := observability.InitMetrics(); err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}
	shutdownTracing := observability.InitOpenTelemetryOrNoop(ctx, cfg.Observability.ServiceName, version)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("error shutting down tracing: %v", err)
		}
	}()
	tracer = observability.Tracer

	store := storage.NewRuleStore(cfg.RuleEngine.RulesRoot)
	runner := actionrunner.New(cfg.RuleEngine.SiteEnvironmentScript, time.Duration(cfg.RuleEngine.CommandTimeoutSec)*time.Second)
	engine := ruleengine.New(store, runner, clock.New(), time.Duration(cfg.RuleEngine.MinTriggerIntervalSec)*time.Second,
		cfg.RuleEngine.MaxRules, cfg.RuleEngine.ReceiveQueueCapacity)

	if err := engine.Boot(ctx); err != nil {
		log.Fatalf("failed to boot rule registry from %s: %v", cfg.RuleEngine.RulesRoot, err)
	}
	log.Printf("rule engine booted from %s", cfg.RuleEngine.RulesRoot)

	h := &handlers{engine: engine}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /ready", handleReady)
	mux.Handle("GET "+cfg.Observability.PrometheusPath, observability.PrometheusHandler())

	mux.HandleFunc("POST /v1/applications/{applicationName}/data", h.postApplicationData)

	mux.HandleFunc("GET /v1/rules", h.getRuleList)
	mux.HandleFunc("POST /v1/rules", h.addRule)
	mux.HandleFunc("GET /v1/rules/{app}/{name}", h.getRule)
	mux.HandleFunc("DELETE /v1/rules/{app}/{name}", h.deleteRule)
	mux.HandleFunc("POST /v1/rules/{app}/{name}/enable", h.enableRule)
	mux.HandleFunc("POST /v1/rules/{app}/{name}/disable", h.disableRule)
	mux.HandleFunc("POST /v1/rules/{app}/{name}/execute", h.executeRule)

	handler := withLogging(middleware.BodyLimitMiddleware(int64(cfg.HTTP.MaxBodyBytes))(mux))

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:        handler,
		ReadTimeout:    time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.HTTP.IdleTimeout) * time.Second,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("policyengine %s (%s) listening on :%d", version, commit, cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}
	log.Println("stopped gracefully")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		if tracer != nil {
			var span oteltrace.Span
			ctx, span = tracer.Start(ctx, r.Method+" "+r.Pattern,
				oteltrace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.path", r.URL.Path),
					attribute.String("http.request_id", requestID),
				),
			)
			defer span.End()
			r = r.WithContext(ctx)
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if span := oteltrace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(attribute.Int("http.status_code", wrapped.statusCode))
		}
		log.Printf("%s %s %d %s request_id=%s", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), requestID)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("error encoding json response: %v", err)
	}
}

func respondError(w http.ResponseWriter, err error, fallback int) {
	status := fallback
	if kind, ok := ruleengine.KindOf(err); ok {
		switch kind {
		case ruleengine.KindRuleNotFound:
			status = http.StatusNotFound
		case ruleengine.KindRuleAlreadyExists, ruleengine.KindRuleAlreadyEnabled, ruleengine.KindRuleAlreadyDisabled:
			status = http.StatusConflict
		case ruleengine.KindRuleDisabled, ruleengine.KindInvalidXML:
			status = http.StatusBadRequest
		case ruleengine.KindRegistryFull, ruleengine.KindReceiveQueueFull:
			status = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// applicationDataRequest is the wire body of the data-ingest endpoint.
// Data is double base64-encoded: decoding the JSON-carried string once
// yields a base64 string, which must be decoded a second time to obtain
// the raw XML bytes handed to the engine.
type applicationDataRequest struct {
	Data string `json:"data"`
}

func decodeDoubleBase64(encoded string) ([]byte, error) {
	once, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("outer base64 decode failed: %w", err)
	}
	twice, err := base64.StdEncoding.DecodeString(string(once))
	if err != nil {
		return nil, fmt.Errorf("inner base64 decode failed: %w", err)
	}
	return twice, nil
}
