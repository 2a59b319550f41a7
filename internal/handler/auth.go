package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/imagevault/internal/config"
	"github.com/templui/imagevault/internal/ctxkeys"
	"github.com/templui/imagevault/internal/model"
	"github.com/templui/imagevault/internal/service"
	"github.com/templui/imagevault/internal/validation"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	GoogleCallbackPath = "/api/auth/callback/google"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateCookie   = "oauth_state"
)

type authHandler struct {
	authService       *service.AuthService
	setupService      *service.SetupService
	googleOAuthConfig *oauth2.Config
	googleConfigured  bool
	userInfoURL       string
	secureCookies     bool
}

func NewAuthHandler(authService *service.AuthService, setupService *service.SetupService, cfg *config.Config) *authHandler {
	return &authHandler{
		authService:  authService,
		setupService: setupService,
		googleOAuthConfig: &oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.GoogleClientID),
			ClientSecret: strings.TrimSpace(cfg.GoogleClientSecret),
			RedirectURL:  strings.TrimSuffix(cfg.AppURL, "/") + GoogleCallbackPath,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		googleConfigured: cfg.GoogleConfigured(),
		userInfoURL:      googleUserInfoURL,
		secureCookies:    cfg.SecureCookies(),
	}
}

// Login redirects to the Google consent screen. It is unavailable (503)
// until setup is complete and Google OAuth is configured.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	err := h.setupService.LoginAllowed()
	if err != nil {
		slog.Info("login blocked", "reason", err)
		writeJSONError(w, "Setup is incomplete", http.StatusServiceUnavailable)
		return
	}

	if !h.googleConfigured {
		writeJSONError(w, "Google sign-in is not configured", http.StatusServiceUnavailable)
		return
	}

	state, err := generateOAuthState()
	if err != nil {
		writeInternalError(w, r, "failed to generate oauth state", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	http.Redirect(w, r, h.googleOAuthConfig.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback completes the OAuth flow, signs the user in and returns to /.
func (h *authHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		slog.Warn("google oauth state validation failed", "error", err)
		writeJSONError(w, "OAuth authentication failed", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		slog.Warn("google oauth denied", "error", errParam)
		writeJSONError(w, "OAuth authentication failed", http.StatusUnauthorized)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("google oauth callback missing code")
		writeJSONError(w, "OAuth authentication failed", http.StatusBadRequest)
		return
	}

	token, err := h.googleOAuthConfig.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("google oauth token exchange failed", "error", err)
		writeJSONError(w, "OAuth authentication failed", http.StatusBadGateway)
		return
	}

	user, err := h.fetchGoogleUser(r, token)
	if err != nil {
		slog.Error("failed to get google user info", "error", err)
		writeJSONError(w, "OAuth authentication failed", http.StatusBadGateway)
		return
	}

	err = h.authService.SignIn(w, user)
	if err != nil {
		writeInternalError(w, r, "failed to issue session", err)
		return
	}

	slog.Info("user logged in with google oauth", "email", user.Email)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *authHandler) fetchGoogleUser(r *http.Request, token *oauth2.Token) (*model.User, error) {
	client := h.googleOAuthConfig.Client(r.Context(), token)
	resp, err := client.Get(h.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var userInfo struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	err = json.NewDecoder(resp.Body).Decode(&userInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	err = validation.ValidateEmail(userInfo.Email)
	if err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}

	return &model.User{
		Name:     userInfo.Name,
		Email:    strings.ToLower(userInfo.Email),
		Picture:  userInfo.Picture,
		Provider: "google",
	}, nil
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	if user == nil {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DevLogin signs in a fixed development identity without Google.
func (h *authHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	user := service.DevUser()
	err := h.authService.SignIn(w, user)
	if err != nil {
		writeInternalError(w, r, "failed to issue dev session", err)
		return
	}

	slog.Info("dev login", "email", user.Email)
	writeJSON(w, http.StatusOK, map[string]bool{"loggedIn": true, "dev": true})
}

func (h *authHandler) DevLogout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"loggedOut": true, "dev": true})
}

func generateOAuthState() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
