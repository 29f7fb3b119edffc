package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/go-invoicing-auth/internal/http/errors"
	"github.com/pribylovaa/go-invoicing-auth/internal/http/middleware"
)

// RevokeSession отзывает один refresh-токен вызывающего (выход с одного устройства).
func (h *Handlers) RevokeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	var in revokeSessionRequest
	if err := h.bind(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	if err := h.svc.RevokeSession(r.Context(), id.UserID, in.RefreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	recs, err := h.svc.Sessions(r.Context(), id.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionsFromModel(recs))
}

// Me возвращает identity текущего запроса (из claim'ов access-токена).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, meFromClaims(id.Claims))
}
