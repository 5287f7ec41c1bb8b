package navigation

import (
	"encoding/json"
	"net/http"

	"github.com/clinicore/clinic-portal/internal/identity"
	"github.com/clinicore/clinic-portal/pkg/logging"
)

// Handler serves the role-based navigation menu.
type Handler struct {
	logger *logging.Logger
}

func NewHandler(logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{logger: logger}
}

// GetMenu handles GET /navigation for the authenticated user.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"role":  user.Role,
		"items": MenuFor(user.Role),
	})
}
