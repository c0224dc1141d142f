package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/LogoForge/internal/models"
	"github.com/digkill/LogoForge/internal/replicate"
	"github.com/digkill/LogoForge/internal/service"
)

const jsonBodyLimit = 1 << 20

func readBody(r *http.Request, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, limit))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, jsonBodyLimit))
	return dec.Decode(v)
}

func (s *Server) handleModelStatus(m replicate.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"message": m.Description})
	}
}

type transformRequest struct {
	Input any `json:"input"`
}

func (s *Server) handleTransform(m replicate.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transformRequest
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, "invalid json")
			return
		}
		output, err := s.deps.Transforms.Run(r.Context(), currentUser(r).ID, m, req.Input)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]json.RawMessage{"output": output})
	}
}

func (s *Server) handleGenerateLogo(w http.ResponseWriter, r *http.Request) {
	mode := models.LogoMode(chi.URLParam(r, "mode"))
	switch mode {
	case models.LogoModeCreate, models.LogoModeSketchToLogo, models.LogoModeLogoToLogo:
	default:
		http.NotFound(w, r)
		return
	}

	var req service.LogoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	result, err := s.deps.Logos.Generate(r.Context(), currentUser(r).ID, mode, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Subscriptions.Get(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

type manageRequest struct {
	SubscriptionID string `json:"subscriptionId"`
}

func (s *Server) handleManageSubscription(w http.ResponseWriter, r *http.Request) {
	var req manageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	links, err := s.deps.Subscriptions.ManagementURLs(r.Context(), currentUser(r).ID, req.SubscriptionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"subscription": links})
}

type upgradeRequest struct {
	PriceID string `json:"priceId"`
}

func (s *Server) handleUpgradeSubscription(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	sub, err := s.deps.Subscriptions.Upgrade(r.Context(), currentUser(r).ID, req.PriceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleListLogos(w http.ResponseWriter, r *http.Request) {
	logos, err := s.deps.Logos.List(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logos)
}

func (s *Server) handleGetLogo(w http.ResponseWriter, r *http.Request) {
	logo, err := s.deps.Logos.Get(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logo)
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	logos, err := s.deps.Logos.Favorites(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logos)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := s.deps.Logos.ToggleFavorite(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"favorite": fav})
}

func (s *Server) handleTogglePublic(w http.ResponseWriter, r *http.Request) {
	logo, err := s.deps.Logos.TogglePublic(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, logo)
}

func (s *Server) handleCommunity(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip")
	if err != nil {
		s.badRequest(w, "skip must be an integer")
		return
	}
	take, err := queryInt(r, "take")
	if err != nil {
		s.badRequest(w, "take must be an integer")
		return
	}
	page, err := s.deps.Logos.Community(r.Context(), skip, take)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
