package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/service"
)

const stateCookieName = "oauth_state"

// GitHubAuthenticator is the part of auth.GitHubProvider the handler uses.
// Tests substitute a fake that never talks to GitHub.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler manages sign-up, sign-in and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin → email + password accounts
//   - HandleGitHubLogin            → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback         → receive the code, exchange it for a user, issue JWT
//   - HandleLogout                 → clear the JWT cookie
//   - HandleMe                     → return the currently logged-in user's profile
//
// The JWT lives in an HttpOnly cookie. API and MCP clients may send the
// same token as "Authorization: Bearer <token>" instead.
type AuthHandler struct {
	service      *service.AuthService
	github       GitHubAuthenticator // nil when GitHub SSO is not configured
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. Pass a nil github to disable the
// GitHub routes; they then answer 404.
func NewAuthHandler(svc *service.AuthService, github GitHubAuthenticator, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:      svc,
		github:       github,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Login    string `json:"login"    validate:"max=50"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates a password account and signs it in.
//
// HTTP: POST /auth/register
// 201 with the user, 409 conflict if the email is taken.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.service.Register(r.Context(), req.Email, req.Password, req.Login)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res.User)
}

// HandleLogin checks email + password and sets the session cookie.
//
// HTTP: POST /auth/login
// A wrong email and a wrong password get the same 401, so the endpoint
// cannot be used to find out which emails are registered.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res.User)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Find or create the local account
//  4. Issue a JWT access token stored in an HttpOnly cookie
//  5. Redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Step 3 + 4: local account and JWT ---
	res, err := h.service.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setTokenCookie(w, res.Token)

	// --- Step 5: Redirect to the app ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token itself stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByID(r.Context(), mustUserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// setTokenCookie stores the JWT in an HttpOnly cookie that expires together
// with the token.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.service.TokenTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
