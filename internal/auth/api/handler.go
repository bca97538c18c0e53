// Package api exposes the authentication core over HTTP. Routes and the
// response envelope match the service's existing wire contract.
package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"authgate/internal/auth/service"
)

const maxBodyBytes = 1 << 16

// Handler serves the auth endpoints.
type Handler struct {
	svc     *service.AuthService
	log     *slog.Logger
	limiter *loginLimiter
}

// NewHandler returns a Handler over svc. ratePerSec <= 0 disables the login
// throttle.
func NewHandler(svc *service.AuthService, log *slog.Logger, ratePerSec float64, burst int) *Handler {
	return &Handler{
		svc:     svc,
		log:     log,
		limiter: newLoginLimiter(ratePerSec, burst),
	}
}

// Register mounts the auth routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/local", h.handleLocalAuth)
	mux.HandleFunc("GET /api/jwt/check", h.handleJWTCheck)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.HandleFunc("GET /auth-option", h.handleAuthOption)
}

type authMethod struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// handleAuthOption lists the authentication methods this deployment accepts.
// Only local login is served here.
func (h *Handler) handleAuthOption(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusOK, true, []authMethod{{Type: "local", Active: true}})
}

type localAuthRequest struct {
	Auth struct {
		Login    string `json:"login"`
		Password string `json:"password"` // client-side SHA-256 digest, not plaintext
	} `json:"auth"`
}

type tokenPairBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (h *Handler) handleLocalAuth(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.limiter.allow(ip) {
		writeMessage(w, http.StatusTooManyRequests, false, "too many attempts")
		return
	}

	var req localAuthRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, false, "missing request data")
		return
	}
	if req.Auth.Login == "" || req.Auth.Password == "" {
		writeMessage(w, http.StatusBadRequest, false, "login and password are required")
		return
	}

	result, err := h.svc.Authenticate(r.Context(), req.Auth.Login, req.Auth.Password, service.ClientMetadata{
		UserAgent: r.UserAgent(),
		IPAddress: ip,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthenticationFailed):
			writeMessage(w, http.StatusForbidden, false, "invalid credentials")
		case errors.Is(err, service.ErrStoreUnavailable):
			writeMessage(w, http.StatusServiceUnavailable, false, "temporarily unavailable")
		default:
			h.log.Error("authenticate failed", "error", err)
			writeMessage(w, http.StatusInternalServerError, false, "internal server error")
		}
		return
	}

	writeEnvelope(w, http.StatusOK, true, tokenPairBody{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		UserID:       result.UserID,
		ExpiresIn:    result.ExpiresIn,
	})
}

type checkBody struct {
	TokenValid bool  `json:"token_valid"`
	Refresh    *bool `json:"refresh,omitempty"`
}

func (h *Handler) handleJWTCheck(w http.ResponseWriter, r *http.Request) {
	accessToken := r.Header.Get("access-token")
	userID := r.Header.Get("user-id")
	if accessToken == "" || userID == "" {
		writeMessage(w, http.StatusBadRequest, false, "access-token and user-id headers are required")
		return
	}

	result, err := h.svc.CheckToken(r.Context(), accessToken, userID)
	if err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			writeMessage(w, http.StatusServiceUnavailable, false, "temporarily unavailable")
			return
		}
		h.log.Error("token check failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, false, "internal server error")
		return
	}

	switch result.State {
	case service.TokenValid:
		writeEnvelope(w, http.StatusOK, true, checkBody{TokenValid: true})
	case service.TokenForged:
		refresh := false
		writeEnvelope(w, http.StatusForbidden, true, checkBody{TokenValid: false, Refresh: &refresh})
	default:
		// Expired family: revoked, refreshable, or non-refreshable.
		refresh := result.Refresh
		writeEnvelope(w, http.StatusUnauthorized, true, checkBody{TokenValid: false, Refresh: &refresh})
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	accessToken := r.Header.Get("access-token")
	refreshToken := r.Header.Get("refresh-token")
	if accessToken == "" || refreshToken == "" {
		writeMessage(w, http.StatusBadRequest, false, "access-token and refresh-token headers are required")
		return
	}

	if err := h.svc.Logout(r.Context(), accessToken, refreshToken); err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			writeMessage(w, http.StatusServiceUnavailable, false, "temporarily unavailable")
			return
		}
		h.log.Error("logout failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, false, "internal server error")
		return
	}

	writeMessage(w, http.StatusOK, true, "session terminated")
}

// clientIP prefers the first X-Forwarded-For hop, falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
