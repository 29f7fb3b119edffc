package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/go-invoicing-auth/internal/http/errors"
	"github.com/pribylovaa/go-invoicing-auth/internal/http/middleware"
	"github.com/pribylovaa/go-invoicing-auth/internal/service"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := h.bind(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	res, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:    in.Email,
		Password: in.Password,
		Username: in.Username,
		FullName: in.FullName,
		Phone:    in.Phone,
		Company:  in.Company,
		Address:  in.Address,
		Country:  in.Country,
		Meta:     clientMeta(r, in.DeviceInfo),
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authFromModel(res))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := h.bind(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	res, err := h.svc.Login(r.Context(), in.Login, in.Password, clientMeta(r, in.DeviceInfo))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authFromModel(res))
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := h.bind(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	res, err := h.svc.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authFromModel(res))
}

// Logout завершает все сессии владельца токена и заносит текущий access-токен в blacklist.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	if err := h.svc.Logout(r.Context(), id.UserID, id.Token); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
