package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"spacebook/internal/config"
	"spacebook/internal/database"
	"spacebook/internal/metrics"
	"spacebook/internal/payment"
	"spacebook/internal/reservation"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking API plus the unauthenticated payment
// webhook endpoint.
type HTTPServer struct {
	cfg           config.APIConfig
	manager       *reservation.Manager
	store         *database.Store
	webhookSecret string
	exportPath    string
	server        *http.Server
	auth          *HTTPAuth
	logger        zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, manager *reservation.Manager, store *database.Store, webhookSecret, exportPath string, logger *zerolog.Logger) *HTTPServer {
	var serverLogger zerolog.Logger
	if logger != nil {
		serverLogger = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:           cfg,
		manager:       manager,
		store:         store,
		webhookSecret: webhookSecret,
		exportPath:    exportPath,
		logger:        serverLogger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", srv.handleCancelBooking)
	mux.HandleFunc("GET /api/v1/spaces/{id}/availability", srv.handleAvailability)
	mux.HandleFunc("GET /api/v1/reports/bookings", srv.handleBookingsReport)
	mux.HandleFunc("POST /webhooks/payment", srv.handlePaymentWebhook)
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the wired handler chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePaymentWebhook verifies the gateway signature before anything
// else touches the body. A bad signature is a hard 400; processing
// errors after verification return 500 so the gateway redelivers.
func (s *HTTPServer) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	sig := r.Header.Get(payment.SignatureHeader)
	if err := payment.VerifySignature(body, sig, s.webhookSecret, time.Now(), payment.DefaultTolerance); err != nil {
		metrics.IncWebhookEvent("rejected")
		s.logger.Warn().Err(err).Msg("webhook signature rejected")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		metrics.IncWebhookEvent("malformed")
		writeError(w, http.StatusBadRequest, "malformed event payload")
		return
	}

	if err := s.manager.ReconcilePaymentEvent(r.Context(), event); err != nil {
		s.logger.Error().Err(err).Str("event_id", event.ID).Msg("webhook reconciliation failed")
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

const maxBodyBytes = 1 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
