package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
)

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.FromString(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id", errs.ErrValidation)
	}
	return id, nil
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.inbox.ListUnread(r.Context(), identity(r).UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	n, err := s.inbox.MarkRead(r.Context(), id, identity(r).UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.challenges.ListCategories(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Category{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) listChallenges(w http.ResponseWriter, r *http.Request) {
	list, err := s.challenges.ListChallenges(r.Context(), identity(r).UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []model.ChallengeView{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) submitFlag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}
	if err := validateStruct(&req); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.challenges.SubmitFlag(r.Context(), identity(r).UserID, id, req.Flag)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: limit must be a number", errs.ErrValidation))
			return
		}
		limit = n
	}
	list, err := s.challenges.Leaderboard(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []model.LeaderboardEntry{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.challenges.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}
