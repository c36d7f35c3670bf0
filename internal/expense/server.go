package expense

import (
	"crypto/subtle"
	"net/http"

	"github.com/zombor/kakeibo/internal/metrics"
)

// LocalOwner owns every record when no credentials are configured.
const LocalOwner = "local"

// Server handles HTTP requests for drafts, expenses and the dashboard
type Server struct {
	service *Service
	users   map[string]string
	mux     *http.ServeMux
}

// ownerHandler is a handler that runs on behalf of an authenticated owner.
type ownerHandler func(w http.ResponseWriter, r *http.Request, owner string)

// NewServer creates a new Server with default mux. users maps user names to
// passwords; when it is empty the server runs in single-user mode.
func NewServer(service *Service, users map[string]string) *Server {
	return NewServerWithMux(service, users, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, users map[string]string, mux *http.ServeMux) *Server {
	s := &Server{
		service: service,
		users:   users,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

// authenticate resolves the owner of a request from its basic auth
// credentials.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	if len(s.users) == 0 {
		return LocalOwner, true
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		return "", false
	}
	want, known := s.users[username]
	if !known || subtle.ConstantTimeCompare([]byte(password), []byte(want)) != 1 {
		return "", false
	}
	return username, true
}

// requireAuth middleware
func (s *Server) requireAuth(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := s.authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Kakeibo"`)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "sign in required"})
			return
		}
		next(w, r, owner)
	}
}

// corsMiddleware adds CORS headers to responses and answers preflight requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	// Drafts
	s.mux.HandleFunc("POST /api/drafts/scan", s.requireAuth(s.handleScan))
	s.mux.HandleFunc("GET /api/drafts/{id}/image", s.requireAuth(s.handleDraftImage))
	s.mux.HandleFunc("POST /api/drafts/{id}/edit", s.requireAuth(s.handleBeginEdit))
	s.mux.HandleFunc("POST /api/drafts/{id}/items", s.requireAuth(s.handleAddItem))
	s.mux.HandleFunc("PATCH /api/drafts/{id}/items/{index}", s.requireAuth(s.handleUpdateItem))
	s.mux.HandleFunc("DELETE /api/drafts/{id}/items/{index}", s.requireAuth(s.handleRemoveItem))
	s.mux.HandleFunc("POST /api/drafts/{id}/cancel", s.requireAuth(s.handleCancelDraft))
	s.mux.HandleFunc("POST /api/drafts/{id}/save", s.requireAuth(s.handleSaveDraft))
	s.mux.HandleFunc("GET /api/drafts/{id}", s.requireAuth(s.handleGetDraft))
	s.mux.HandleFunc("PATCH /api/drafts/{id}", s.requireAuth(s.handleUpdateDraft))
	s.mux.HandleFunc("DELETE /api/drafts/{id}", s.requireAuth(s.handleDiscardDraft))
	s.mux.HandleFunc("GET /api/drafts", s.requireAuth(s.handleListDrafts))
	s.mux.HandleFunc("POST /api/drafts", s.requireAuth(s.handleNewDraft))

	// Expenses
	s.mux.HandleFunc("POST /api/expenses/{id}/edit", s.requireAuth(s.handleEditExpense))
	s.mux.HandleFunc("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	s.mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))
	s.mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	s.mux.HandleFunc("DELETE /api/expenses", s.requireAuth(s.handleDeleteExpenses))

	// Dashboard
	s.mux.HandleFunc("GET /api/dashboard/chart.png", s.requireAuth(s.handleDashboardChart))
	s.mux.HandleFunc("GET /api/dashboard", s.requireAuth(s.handleDashboard))

	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// Handler returns the full handler chain used in production.
func (s *Server) Handler() http.Handler {
	return metrics.Middleware(corsMiddleware(s.mux))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	corsMiddleware(s.mux).ServeHTTP(w, r)
}
