// Package server implements the HTTP ingress for the sakhid daemon. It
// accepts messages at the trust boundary, validates them, and publishes
// message.ingested; the pipeline does the rest asynchronously.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/bus"
	"github.com/sakhilabs/sakhid/contracts"
)

// Server is the HTTP front door.
type Server struct {
	bus    *bus.Bus
	logger zerolog.Logger
	http   *http.Server
}

// Config holds server configuration options.
type Config struct {
	Addr   string
	Logger zerolog.Logger
}

// New creates the ingress server.
func New(cfg Config, b *bus.Bus) *Server {
	s := &Server{
		bus:    b,
		logger: cfg.Logger.With().Str("component", "httpServer").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /events/message-ingested", s.handleMessageIngested)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve blocks listening on the configured address.
func (s *Server) Serve() error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.logger.Info().Str("address", listener.Addr().String()).Msg("Starting HTTP server")
	if err := s.http.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GracefulStop drains in-flight requests and shuts the listener down.
func (s *Server) GracefulStop(ctx context.Context) error {
	s.logger.Info().Msg("Gracefully stopping HTTP server")
	return s.http.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

type acceptedResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// handleMessageIngested validates the posted message and hands it to the
// pipeline. Replies 202: the reply is delivered via reply.rendered, not on
// this request.
func (s *Server) handleMessageIngested(w http.ResponseWriter, r *http.Request) {
	var message contracts.Message
	if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON: " + err.Error()})
		return
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.SchemaVersion == "" {
		message.SchemaVersion = contracts.SchemaVersion
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	if err := contracts.ValidateMessage(&message); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.bus.Publish(r.Context(), contracts.EventMessageIngested, contracts.MessageIngested{Message: message})
	writeJSON(w, http.StatusAccepted, acceptedResponse{MessageID: message.ID, Status: "accepted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}
