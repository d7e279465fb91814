package handlers

import (
	"net/http"
	"time"

	"coursify/internal/transport/http/httperr"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Account     accountResponse `json:"account"`
	AccessToken string          `json:"accessToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	// RefreshToken присутствует только при ротации — для клиентов,
	// работающих без cookie (body-режим).
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Register — POST /auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidArgument)
		return
	}

	user, pair, err := h.Svc.RegisterUser(r.Context(), in.Name, in.Email, in.Password, in.Role)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusCreated, authResponse{
		Account:     accountFromModel(user),
		AccessToken: pair.AccessToken,
	})
}

// Login — POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidArgument)
		return
	}

	// Отсутствие полей — это 400, а не 401: запрос синтаксически неполон.
	if in.Email == "" || in.Password == "" {
		httperr.WriteError(w, r, httperr.ErrInvalidArgument)
		return
	}

	user, pair, err := h.Svc.LoginUser(r.Context(), in.Email, in.Password)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, authResponse{
		Account:     accountFromModel(user),
		AccessToken: pair.AccessToken,
	})
}

// Me — GET /auth/me (за Auth): текущая учётная запись.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Svc.Account(r.Context(), identity(r).UserID)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, accountFromModel(user))
}

// Refresh — POST|GET /auth/refresh.
// Credential берётся из cookie, затем из тела; отсутствие — 401,
// отклонённый credential — 403.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token := h.refreshCredential(r)
	if token == "" {
		httperr.WriteError(w, r, httperr.ErrAuthMissing)
		return
	}

	pair, err := h.Svc.RefreshSession(r.Context(), token)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	if pair.RefreshToken != "" {
		h.setRefreshCookie(w, pair.RefreshToken)
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout — POST /auth/logout. Идемпотентен: без credential отвечает 204
// и не ходит в хранилище вовсе.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.refreshCredential(r)
	if token == "" {
		h.clearRefreshCookie(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.Svc.Logout(r.Context(), token); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// refreshCredential достаёт refresh-токен: сначала cookie, затем поле тела.
// Порядок фиксирован: cookie-режим — основной, body — для деплойментов
// без общего origin.
func (h *Handlers) refreshCredential(r *http.Request) string {
	if c, err := r.Cookie(h.Cookie.Name); err == nil && c.Value != "" {
		return c.Value
	}

	if r.Body == nil {
		return ""
	}

	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		return ""
	}

	return in.RefreshToken
}

func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    token,
		Path:     h.Cookie.Path,
		Domain:   h.Cookie.Domain,
		MaxAge:   int(h.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: h.Cookie.SameSiteMode(),
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    "",
		Path:     h.Cookie.Path,
		Domain:   h.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: h.Cookie.SameSiteMode(),
	})
}
