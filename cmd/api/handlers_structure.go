package main

import (
	"net/http"
	"strconv"

	"github.com/hibaMouhoub2/prospection-app/structure"
)

type unitResponse struct {
	ID   int64  `json:"id"`
	Nom  string `json:"nom"`
	Code string `json:"code"`
}

func toUnitResponse(u structure.Unit) unitResponse {
	return unitResponse{ID: u.ID, Nom: u.Nom, Code: u.Code}
}

// optionalID parses an optional positive integer query parameter.
func optionalID(r *http.Request, name string) (*int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil, false
	}
	return &v, true
}

func (s *Server) handleListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.structureService.ListRegions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]unitResponse, 0, len(regions))
	for _, reg := range regions {
		out = append(out, toUnitResponse(reg.Unit))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListSupervisions(w http.ResponseWriter, r *http.Request) {
	regionID, ok := optionalID(r, "regionId")
	if !ok {
		writeBadRequest(w, "regionId must be a positive integer")
		return
	}
	sups, err := s.structureService.ListSupervisions(r.Context(), regionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]unitResponse, 0, len(sups))
	for _, sup := range sups {
		out = append(out, toUnitResponse(sup.Unit))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	supervisionID, ok := optionalID(r, "supervisionId")
	if !ok {
		writeBadRequest(w, "supervisionId must be a positive integer")
		return
	}
	branches, err := s.structureService.ListBranches(r.Context(), supervisionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]unitResponse, 0, len(branches))
	for _, b := range branches {
		out = append(out, toUnitResponse(b.Unit))
	}
	writeJSON(w, http.StatusOK, out)
}
