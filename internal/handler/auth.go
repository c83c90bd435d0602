package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/auth"
	"github.com/sakif/lumi/internal/service"
)

// AuthHandler exposes registration, login and token verification.
//
// HANDLER RESPONSIBILITIES:
//   - HandleAuth     → POST /api/auth, dispatching on the "action" field
//   - HandleRegister → POST /api/auth/register
//   - HandleLogin    → POST /api/auth/login
//   - HandleVerify   → POST /api/auth/verify
//   - HandleMe       → GET /api/me, the current user behind the token
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// authRequest is the body of every auth call. Unused fields are ignored.
type authRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Token    string `json:"token"`
}

// HandleAuth serves the single-endpoint form clients already use:
//
//	POST /api/auth {"action":"register","username":..,"email":..,"password":..,"full_name":..}
//	POST /api/auth {"action":"login","email":..,"password":..}
//	POST /api/auth {"action":"verify","token":..}
func (h *AuthHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	switch req.Action {
	case "register":
		h.register(w, r, req)
	case "login":
		h.login(w, r, req)
	case "verify":
		h.verify(w, r, req)
	default:
		writeError(w, apperror.ValidationFailed("action", "action must be register, login or verify"))
	}
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.decodeThen(w, r, h.register)
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.decodeThen(w, r, h.login)
}

func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.decodeThen(w, r, h.verify)
}

// HandleMe returns the current row for the caller. Mounted behind auth.RequireAuth.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, apperror.Unauthorized())
		return
	}
	user, err := h.auth.CurrentUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user.Public()})
}

func (h *AuthHandler) decodeThen(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request, authRequest)) {
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	next(w, r, req)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, req authRequest) {
	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, req authRequest) {
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// verify takes the token from the body, falling back to the request headers.
func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request, req authRequest) {
	token := req.Token
	if token == "" {
		token = auth.TokenFromRequest(r)
	}
	res, err := h.auth.Verify(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
