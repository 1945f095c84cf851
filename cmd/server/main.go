// Package main is the entry point for the tokendash service, the
// backend aggregating chain, token, staking, asset and building-model
// metrics into one dashboard API for the tokenization platform.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/tokendash/internal/aggregate"
	"github.com/yourorg/tokendash/internal/assemble"
	"github.com/yourorg/tokendash/internal/cache"
	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/enterprise"
	"github.com/yourorg/tokendash/internal/model"
	"github.com/yourorg/tokendash/internal/otel"
	"github.com/yourorg/tokendash/internal/security"
	"github.com/yourorg/tokendash/internal/upstream"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

const version = "1.0.0"

// Server is the dashboard API server instance.
type Server struct {
	cfg config.Config

	aggregator *aggregate.Aggregator
	cache      *cache.Layer
	assembler  *assemble.Assembler
	bim        *upstream.BIMGateway

	signer    *security.PayloadSigner
	exporter  *enterprise.SnapshotExporter
	rateLimit *rate.Limiter

	metrics *serverMetrics
	server  *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	staleCategories prometheus.Gauge
	networkHealth   prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokendash_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokendash_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokendash_upstream_errors_total",
				Help: "Total number of upstream source failures after retries",
			},
			[]string{"source", "kind"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokendash_cache_hits_total",
				Help: "Dashboard reads answered from fresh cache",
			},
			[]string{"category"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokendash_cache_misses_total",
				Help: "Dashboard reads that triggered an upstream refresh",
			},
			[]string{"category"},
		),
		staleCategories: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tokendash_stale_categories",
				Help: "Number of stale categories in the last assembled dashboard",
			},
		),
		networkHealth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tokendash_network_health_score",
				Help: "Last computed network health score",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.upstreamErrors,
		m.cacheHits,
		m.cacheMisses,
		m.staleCategories,
		m.networkHealth,
	)

	return m
}

// main is the entry point for the application
func main() {
	setupLogging()

	cfg := config.Load()

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	server := NewServer(cfg)
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// createSources builds the upstream clients feeding the aggregator.
func createSources(cfg config.Config, bim *upstream.BIMGateway) aggregate.Sources {
	src := aggregate.Sources{
		Chain:  upstream.NewChainRPC(cfg),
		Token:  upstream.NewTokenAPI(cfg),
		Assets: upstream.NewAssetRegistry(cfg),
		BIM:    bim,
	}
	if n := upstream.NewNarrative(cfg); n != nil {
		src.Narrative = n
	}
	return src
}

// NewServer creates a server instance with the aggregation pipeline
// wired up.
func NewServer(cfg config.Config) *Server {
	metrics := registerMetrics()

	server := &Server{
		cfg:     cfg,
		metrics: metrics,
	}

	server.bim = upstream.NewBIMGateway(cfg)
	server.aggregator = aggregate.NewWithSources(createSources(cfg, server.bim), cfg).WithFailureHook(
		func(source string, kind model.FailureKind) {
			metrics.upstreamErrors.WithLabelValues(source, string(kind)).Inc()
		})

	server.cache = cache.New(server.aggregator, cfg).WithCounters(
		func(cat model.Category) { metrics.cacheHits.WithLabelValues(string(cat)).Inc() },
		func(cat model.Category) { metrics.cacheMisses.WithLabelValues(string(cat)).Inc() })

	server.assembler = assemble.New(server.cache)

	requestsPerSecond := config.GetEnvAsFloat("RATE_LIMIT_RPS", 10.0)
	burstSize := config.GetEnvAsInt("RATE_LIMIT_BURST", 20)
	server.rateLimit = rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize)
	logrus.Infof("Rate limiting initialized: %v req/s, burst: %d", requestsPerSecond, burstSize)

	if config.GetEnvAsBool("SIGNING_ENABLED", false) {
		validity := config.GetEnvAsDuration("SIGNATURE_VALIDITY", time.Hour)
		signer, err := security.NewPayloadSigner(validity)
		if err != nil {
			logrus.Warnf("Failed to initialize payload signer: %v", err)
		} else {
			server.signer = signer
		}
	}

	if config.GetEnvAsBool("SNAPSHOT_EXPORT_ENABLED", false) {
		server.exporter = enterprise.NewSnapshotExporter(enterprise.ExporterConfig{
			Enabled:        true,
			BatchSize:      config.GetEnvAsInt("SNAPSHOT_EXPORT_BATCH_SIZE", 20),
			ExportInterval: config.GetEnvAsDuration("SNAPSHOT_EXPORT_INTERVAL", time.Minute),
			WebhookURL:     os.Getenv("WEBHOOK_URL"),
			WebhookAPIKey:  os.Getenv("WEBHOOK_API_KEY"),
		})
	}

	logrus.WithFields(logrus.Fields{
		"port":            cfg.Port,
		"chain_id":        cfg.ChainID,
		"rpc_url":         cfg.RPCURL,
		"request_timeout": cfg.RequestTimeout,
		"fallback_window": cfg.FallbackWindow,
		"signing":         server.signer != nil,
		"snapshot_export": server.exporter != nil,
	}).Info("Server initialized")

	return server
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/dashboard", s.handleDashboard)
	mux.HandleFunc("/api/bim/refresh", s.handleBIMRefresh)
	mux.HandleFunc("/api/bim/models", s.handleBIMUpload)
	mux.HandleFunc("/api/bim/models/", s.handleBIMModelFile)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	if s.exporter != nil {
		s.exporter.Stop()
	}

	logrus.Info("Server stopped")
}

// handleDashboard serves the composite dashboard payload.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		s.errorResponse(w, "dashboard", http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.rateLimit.Allow() {
		s.errorResponse(w, "dashboard", http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	cats, err := parseCategories(r.URL.Query().Get("categories"))
	if err != nil {
		s.errorResponse(w, "dashboard", http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := otel.Tracer().Start(r.Context(), "dashboard.assemble")
	defer span.End()

	payload := s.assembler.Assemble(ctx, cats)

	stale := 0
	for _, rec := range payload {
		if rec.Stale {
			stale++
		}
	}
	s.metrics.staleCategories.Set(float64(stale))
	if rec, ok := payload[model.CategoryNetwork]; ok {
		if score, ok := rec.Fields["health_score"].(float64); ok {
			s.metrics.networkHealth.Set(score)
		}
	}

	if s.exporter != nil {
		s.exporter.Add(payload)
	}

	response := map[string]any{
		"data":         payload,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"stale_count":  stale,
	}

	var body any = response
	if s.signer != nil {
		signed, err := s.signer.Sign(response)
		if err != nil {
			otel.RecordError(ctx, err)
			logrus.Warnf("Failed to sign dashboard payload: %v", err)
		} else {
			body = signed
		}
	}

	s.metrics.requestDuration.WithLabelValues("dashboard").Observe(time.Since(start).Seconds())
	s.metrics.requestCounter.WithLabelValues("dashboard", "success").Inc()
	writeJSON(w, http.StatusOK, body)
}

// handleBIMRefresh invalidates the building analysis record and
// rebuilds it from the BIM server, for use after a model upload.
func (s *Server) handleBIMRefresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		s.errorResponse(w, "bim_refresh", http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.rateLimit.Allow() {
		s.errorResponse(w, "bim_refresh", http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	s.cache.Invalidate(model.CategoryBIMAnalysis)
	rec := s.cache.Get(r.Context(), model.CategoryBIMAnalysis)

	s.metrics.requestDuration.WithLabelValues("bim_refresh").Observe(time.Since(start).Seconds())
	s.metrics.requestCounter.WithLabelValues("bim_refresh", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "refreshed",
		"bim_analysis": rec,
	})
}

// handleBIMUpload stores a new IFC model on the BIM server and
// invalidates the building analysis so the next read reflects it.
func (s *Server) handleBIMUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "bim_upload", http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.rateLimit.Allow() {
		s.errorResponse(w, "bim_upload", http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	name := r.Header.Get("X-Model-Name")
	if name == "" {
		name = "unnamed"
	}

	id, err := s.bim.UploadModel(r.Context(), name, r.Body)
	if err != nil {
		s.errorResponse(w, "bim_upload", http.StatusBadGateway, "Model upload failed: "+err.Error())
		return
	}

	s.cache.Invalidate(model.CategoryBIMAnalysis)
	s.metrics.requestCounter.WithLabelValues("bim_upload", "success").Inc()
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "uploaded",
		"id":     id,
		"name":   name,
	})
}

// handleBIMModelFile streams a stored IFC model to the viewer.
func (s *Server) handleBIMModelFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "bim_download", http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/bim/models/")
	modelID := strings.TrimSuffix(rest, "/file")
	if modelID == "" || modelID == rest {
		s.errorResponse(w, "bim_download", http.StatusNotFound, "Not found")
		return
	}

	body, err := s.bim.DownloadModel(r.Context(), modelID)
	if err != nil {
		s.errorResponse(w, "bim_download", http.StatusBadGateway, "Model download failed: "+err.Error())
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/ifc")
	if _, err := io.Copy(w, body); err != nil {
		logrus.Warnf("Streaming model %s aborted: %v", modelID, err)
	}
	s.metrics.requestCounter.WithLabelValues("bim_download", "success").Inc()
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":   "operational",
		"uptime":   time.Since(startTime).String(),
		"version":  version,
		"chain_id": s.cfg.ChainID,
		"breakers": s.aggregator.BreakerStates(),
		"records":  s.cache.Ages(),
	}
	if s.signer != nil {
		status["public_key"] = s.signer.PublicKey()
	}
	if s.exporter != nil {
		status["snapshot_export"] = s.exporter.Status()
	}

	writeJSON(w, http.StatusOK, status)
}
