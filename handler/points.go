package handler

import (
	"net/http"

	"github.com/pyama86/dispatchd/domain/entity"
)

func (s *Server) listPoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.app.Incidents.RelatedPoints(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) getPoint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	points, err := s.app.Incidents.RelatedPoints(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, p := range points {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, entity.NotFound("duty point", id))
}
