package httptransport

import (
	"errors"
	"net/http"

	"chess-arena/internal/auth"

	"github.com/rs/zerolog/log"
)

type AuthHandlers struct {
	verifier Verifier
	sessions Disconnecter
}

func NewAuthHandlers(verifier Verifier, sessions Disconnecter) *AuthHandlers {
	return &AuthHandlers{verifier: verifier, sessions: sessions}
}

// Logout drops the caller's live connection. Credential revocation belongs
// to the sign-in service.
func (h *AuthHandlers) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.verifier.Verify(r.Context(), auth.BearerToken(r))
		if err != nil {
			code := auth.ErrInvalidCredential.Error()
			if errors.Is(err, auth.ErrMissingCredential) {
				code = auth.ErrMissingCredential.Error()
			}
			WriteHTTPError(w, http.StatusUnauthorized, code)
			return
		}
		disconnected := h.sessions.ForceDisconnect(id.ID)
		log.Info().Str("identity_id", id.ID).Bool("disconnected", disconnected).Msg("logout")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "disconnected": disconnected})
	}
}
