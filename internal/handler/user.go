package handler

import (
	"net/http"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/handler/dto"
)

// UserHandler serves authenticated user endpoints.
type UserHandler struct{}

// NewUserHandler creates a new UserHandler.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me handles GET /api/v1/users/me.
// The identity is resolved by the authentication middleware; by the time
// this runs the token has been verified and the user looked up.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]string{
				"code":    "UNAUTHORIZED",
				"message": "Invalid or missing credentials",
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(identity))
}
