package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hibaMouhoub2/prospection-app/auth"
	"github.com/hibaMouhoub2/prospection-app/prospection"
)

type createProspectionRequest struct {
	Type        string            `json:"type"`
	Commentaire string            `json:"commentaire"`
	Answers     map[string]string `json:"answers"`
}

type assignRequest struct {
	AgentID int64 `json:"agentId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type prospectionResponse struct {
	ID              int64             `json:"id"`
	Type            string            `json:"type"`
	Status          string            `json:"status"`
	Commentaire     string            `json:"commentaire"`
	Answers         map[string]string `json:"answers"`
	CreatorID       int64             `json:"creatorId"`
	AssignedAgentID *int64            `json:"assignedAgentId,omitempty"`
	RegionID        *int64            `json:"regionId,omitempty"`
	SupervisionID   *int64            `json:"supervisionId,omitempty"`
	BranchID        *int64            `json:"brancheId,omitempty"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
	AssignedAt      string            `json:"assignedAt,omitempty"`
}

type eventResponse struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	ActorID   int64          `json:"actorId"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

func toProspectionResponse(p prospection.Prospection) prospectionResponse {
	answers := p.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	resp := prospectionResponse{
		ID:              p.ID,
		Type:            string(p.Type),
		Status:          string(p.Status),
		Commentaire:     p.Commentaire,
		Answers:         answers,
		CreatorID:       p.CreatorID,
		AssignedAgentID: p.AssignedAgentID,
		RegionID:        p.RegionID,
		SupervisionID:   p.SupervisionID,
		BranchID:        p.BranchID,
		CreatedAt:       p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if p.AssignedAt != nil {
		resp.AssignedAt = p.AssignedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toProspectionList(ps []prospection.Prospection) []prospectionResponse {
	out := make([]prospectionResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProspectionResponse(p))
	}
	return out
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleCreateProspection(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req createProspectionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	typ, err := prospection.ParseType(req.Type)
	if err != nil {
		writeBadRequest(w, publicMessage(err))
		return
	}

	p, err := s.prospectionService.Create(r.Context(), principal, prospection.CreateParams{
		Type:        typ,
		Commentaire: req.Commentaire,
		Answers:     req.Answers,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProspectionResponse(p))
}

func (s *Server) handleListProspections(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = v
	}

	ps, err := s.prospectionService.ListVisible(r.Context(), principal, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProspectionList(ps))
}

func (s *Server) handleListMyProspections(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	ps, err := s.prospectionService.ListMine(r.Context(), principal)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProspectionList(ps))
}

func (s *Server) handleGetProspection(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid prospection id")
		return
	}
	p, err := s.prospectionService.Get(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProspectionResponse(p))
}

func (s *Server) handleProspectionHistory(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid prospection id")
		return
	}
	events, err := s.prospectionService.History(r.Context(), principal, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:        e.ID,
			Type:      e.Type,
			ActorID:   e.ActorID,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAssignProspection(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid prospection id")
		return
	}
	var req assignRequest
	if err := decodeJSON(r, &req, false); err != nil || req.AgentID <= 0 {
		writeBadRequest(w, "agentId is required")
		return
	}

	p, err := s.prospectionService.Assign(r.Context(), principal, id, req.AgentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProspectionResponse(p))
}

func (s *Server) handleTransitionProspection(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid prospection id")
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	next, err := prospection.ParseStatus(req.Status)
	if err != nil {
		writeBadRequest(w, publicMessage(err))
		return
	}

	p, err := s.prospectionService.Transition(r.Context(), principal, id, next)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProspectionResponse(p))
}
