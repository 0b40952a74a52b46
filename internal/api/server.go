// Package api serves race predictions over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/inference"
	"github.com/yourusername/race-edge/internal/metrics"
)

// Predictor produces a prediction for one race
type Predictor interface {
	PredictRace(ctx context.Context, raceID string, bankroll int64) (*inference.PredictionResponse, error)
}

// Server is the prediction API
type Server struct {
	cfg        config.ServerConfig
	metrics    config.MetricsConfig
	predictor  Predictor
	bundles    inference.BundleSource
	hub        *Hub
	logger     logrus.FieldLogger
	validate   *validator.Validate
	upgrader   websocket.Upgrader
	slots      chan struct{}
	timeout    time.Duration
	middleware []func(http.Handler) http.Handler
	httpServer *http.Server
}

// NewServer creates the API server. hub may be nil to disable the feed.
func NewServer(cfg config.ServerConfig, metricsCfg config.MetricsConfig, predictor Predictor, bundles inference.BundleSource, hub *Hub, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.New()
	}
	slots := cfg.MaxConcurrent
	if slots <= 0 {
		slots = 1
	}
	timeout := time.Duration(cfg.RequestTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{
		cfg:       cfg,
		metrics:   metricsCfg,
		predictor: predictor,
		bundles:   bundles,
		hub:       hub,
		logger:    log,
		validate:  validator.New(),
		slots:     make(chan struct{}, slots),
		timeout:   timeout,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.allowOrigin,
	}
	return s
}

// Use adds middleware around the routed handler, inside CORS
func (s *Server) Use(mw ...func(http.Handler) http.Handler) {
	s.middleware = append(s.middleware, mw...)
}

// Handler returns the routed handler wrapped in CORS
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/races/{race_id}/predict", s.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/api/models", s.handleModels).Methods(http.MethodGet)

	if s.hub != nil {
		router.HandleFunc("/ws/predictions", s.handleFeed)
	}
	if s.metrics.Enabled {
		path := s.metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, metrics.Handler()).Methods(http.MethodGet)
	}

	var h http.Handler = router
	for i := len(s.middleware) - 1; i >= 0; i-- {
		h = s.middleware[i](h)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(h)
}

// Start listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         ":" + strconv.Itoa(s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"port":           s.cfg.Port,
			"max_concurrent": cap(s.slots),
		}).Info("Prediction API starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Prediction API shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// acquire takes a worker slot, waiting until ctx is done
func (s *Server) acquire(ctx context.Context) bool {
	select {
	case s.slots <- struct{}{}:
		metrics.PredictionStarted()
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) release() {
	<-s.slots
	metrics.PredictionFinished()
}

func (s *Server) origins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

func (s *Server) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins() {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
