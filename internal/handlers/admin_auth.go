package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"junks-backend/internal/auth"
	"junks-backend/internal/httpx"
	"junks-backend/internal/middleware"
	"junks-backend/internal/transport"
)

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginResponse struct {
	Status string `json:"status"`
}

type AdminSessionResponse struct {
	User *middleware.Admin `json:"user"`
}

func (s *Server) AdminLogin(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req AdminLoginRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin login: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := s.Val.Struct(req); err != nil {
		log.Warn("admin login: validation error")
		details := httpx.ValidationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation error", details)
		return
	}

	if s.Auth == nil || !s.Creds.Configured() {
		log.Warn("admin login: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	if err := s.Creds.Check(req.Username, req.Password); err != nil {
		log.Warn("admin login: invalid credentials", slog.String("username", req.Username))
		transport.WriteError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	if !s.issueSession(w, log, req.Username) {
		return
	}
	log.Info("admin login: ok", slog.String("username", req.Username))
	transport.WriteJSON(w, http.StatusOK, AdminLoginResponse{Status: "ok"})
}

func (s *Server) AdminRefresh(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	if s.Auth == nil {
		log.Warn("admin refresh: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
		return
	}

	refreshCookie, err := r.Cookie(auth.RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		log.Warn("admin refresh: missing refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	claims, err := s.Auth.ParseRefresh(refreshCookie.Value)
	if err != nil || claims.Role != auth.RoleAdmin {
		log.Warn("admin refresh: invalid refresh token")
		transport.WriteError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	if !s.issueSession(w, log, claims.Subject) {
		return
	}
	log.Info("admin refresh: ok")
	transport.WriteJSON(w, http.StatusOK, AdminLoginResponse{Status: "ok"})
}

func (s *Server) AdminLogout(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	clearAuthCookies(w, s.cookieSecure())
	log.Info("admin logout: ok")
	transport.WriteJSON(w, http.StatusOK, AdminLoginResponse{Status: "ok"})
}

// AdminSession reports the signed-in admin, or a null user.
func (s *Server) AdminSession(w http.ResponseWriter, r *http.Request) {
	apiKey := ""
	if s.Cfg != nil {
		apiKey = s.Cfg.AdminAPIKey
	}
	admin, ok := middleware.Authenticate(r, apiKey, s.Auth, s.Verifier)
	if !ok {
		transport.WriteJSON(w, http.StatusOK, AdminSessionResponse{})
		return
	}
	transport.WriteJSON(w, http.StatusOK, AdminSessionResponse{User: &admin})
}

func (s *Server) issueSession(w http.ResponseWriter, log *slog.Logger, subject string) bool {
	accessToken, err := s.Auth.NewAccessToken(subject, auth.RoleAdmin)
	if err != nil {
		log.Error("admin session: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return false
	}
	refreshToken, err := s.Auth.NewRefreshToken(subject, auth.RoleAdmin)
	if err != nil {
		log.Error("admin session: token error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "token error", nil)
		return false
	}
	setAuthCookies(w, accessToken, refreshToken, s.Auth.AccessTTL, s.Auth.RefreshTTL, s.cookieSecure())
	return true
}

func (s *Server) cookieSecure() bool {
	return s.Cfg != nil && (s.Cfg.CookieSecure || s.Cfg.IsProduction())
}

func setAuthCookies(w http.ResponseWriter, access, refresh string, accessTTL, refreshTTL time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessCookie,
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(accessTTL.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshCookie,
		Value:    refresh,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(refreshTTL.Seconds()),
	})
}

func clearAuthCookies(w http.ResponseWriter, secure bool) {
	expire := time.Now().Add(-1 * time.Hour)
	for _, name := range []string{auth.AccessCookie, auth.RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			Expires:  expire,
			MaxAge:   -1,
		})
	}
}
