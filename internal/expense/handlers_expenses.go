package expense

import (
	"net/http"
	"strconv"

	"github.com/zombor/kakeibo/internal/dashboard"
)

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

// queryRange reads view, period and shift from the query string.
func (s *Server) queryRange(r *http.Request) (dashboard.Range, error) {
	q := r.URL.Query()
	rng, err := dashboard.ParseRange(q.Get("view"), q.Get("period"), s.service.Now())
	if err != nil {
		return dashboard.Range{}, err
	}
	if raw := q.Get("shift"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return dashboard.Range{}, dashboard.ErrInvalidRange
		}
		rng = rng.Shift(n)
	}
	return rng, nil
}

type expenseList struct {
	Period   string    `json:"period"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Expenses []*Record `json:"expenses"`
}

// handleListExpenses returns the caller's expenses in a month or year
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, owner string) {
	rng, err := s.queryRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, to := rng.Bounds()
	records, err := s.service.ListRange(r.Context(), owner, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseList{
		Period:   rng.Period(),
		From:     from,
		To:       to,
		Expenses: records,
	})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request, owner string) {
	record, err := s.service.GetRecord(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleEditExpense opens a stored expense in the edit form
func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request, owner string) {
	d, err := s.service.EditStored(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.service.DeleteRecord(r.Context(), owner, r.PathValue("id"), confirmed(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteExpenses bulk deletes the caller's expenses in a month or year
func (s *Server) handleDeleteExpenses(w http.ResponseWriter, r *http.Request, owner string) {
	rng, err := s.queryRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, to := rng.Bounds()
	n, err := s.service.DeleteRange(r.Context(), owner, from, to, confirmed(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
