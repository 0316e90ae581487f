package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/logging"
)

type authHandler struct {
	users UserAPI
	log   logging.Logger
}

type registerRequest struct {
	Login            string `json:"login"`
	Password         string `json:"password"`
	PasswordRepeated string `json:"password_repeated"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Token string `json:"token"`
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: MALFORMED_BODY", common.ErrorBadRequest)
	}
	return nil
}

func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, h.log, err)
		return
	}

	view, err := h.users.Register(ctx, req.Login, req.Password, req.PasswordRepeated)
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, h.log, err)
		return
	}

	pair, err := h.users.Login(ctx, req.Login, req.Password)
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *authHandler) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, h.log, err)
		return
	}

	pair, err := h.users.Refresh(ctx, req.Token)
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}
