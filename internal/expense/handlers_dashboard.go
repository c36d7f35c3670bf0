package expense

import (
	"net/http"

	"github.com/zombor/kakeibo/internal/dashboard"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, owner string) {
	rng, err := s.queryRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	overview, err := s.service.Dashboard(r.Context(), owner, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleDashboardChart(w http.ResponseWriter, r *http.Request, owner string) {
	rng, err := s.queryRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	overview, err := s.service.Dashboard(r.Context(), owner, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	png, err := dashboard.RenderChart(overview.Summary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
