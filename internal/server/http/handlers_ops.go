package httpserver

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		s.log.Warn("readiness check failed", zap.Error(err))
		respondMessage(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ws authenticates the upgrade request and hands the connection to the
// realtime server, which then runs the authenticate handshake.
func (s *Server) ws(w http.ResponseWriter, r *http.Request) {
	tok, err := s.gw.TokenFromUpgrade(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := s.gw.Authenticate(r.Context(), tok)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.rt.Serve(w, r, id)
}
