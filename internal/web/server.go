// Package web provides the HTTP status page and command API for the emperor
// daemon.
package web

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/emperor/internal/logic"
	"github.com/sweeney/emperor/internal/status"
)

// SourceHTTP tags commands received over the HTTP API.
const SourceHTTP = "http"

// maxCommandBody bounds the size of a direction request body.
const maxCommandBody = 64

// Commander accepts remote commands for the tick loop. Submit returns false
// when the command could not be queued.
type Commander interface {
	Submit(cmd logic.RemoteCommand) bool
}

// Server serves the status page and command API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commander  Commander
}

// New creates a Server that reads state from the given tracker and forwards
// direction requests to commander.
func New(addr string, tracker *status.Tracker, commander Commander) *Server {
	s := &Server{tracker: tracker, commander: commander}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/api/actuators/{name}/direction", s.handleDirection).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleDirection queues a direction for one actuator. The body is the bare
// property value ("stop", "up" or "down"). Anything else is still queued, as
// a stop, and answered with 400.
func (s *Server) handleDirection(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := s.tracker.Snapshot().Actuator(name); !ok {
		writeCommand(w, http.StatusNotFound, commandResponse{Actuator: name, Error: "unknown actuator"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		writeCommand(w, http.StatusBadRequest, commandResponse{Actuator: name, Error: err.Error()})
		return
	}
	cmd := logic.ParseRemoteCommand(name, strings.TrimSpace(string(body)), SourceHTTP)

	if !s.commander.Submit(cmd) {
		log.WithField("actuator", name).Warn("command queue full, dropping HTTP command")
		writeCommand(w, http.StatusServiceUnavailable, commandResponse{Actuator: name, Error: "command queue full"})
		return
	}

	resp := commandResponse{
		Actuator:  name,
		Direction: cmd.Direction.String(),
		Valid:     cmd.Valid,
	}
	code := http.StatusAccepted
	if !cmd.Valid {
		resp.Error = "invalid direction, stopping"
		code = http.StatusBadRequest
	}
	writeCommand(w, code, resp)
}
