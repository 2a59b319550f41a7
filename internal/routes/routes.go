package routes

import (
	"net/http"

	"github.com/templui/imagevault/internal/app"
	"github.com/templui/imagevault/internal/handler"
	"github.com/templui/imagevault/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler()
	setup := handler.NewSetupHandler(app.SetupService)
	auth := handler.NewAuthHandler(app.AuthService, app.SetupService, app.Cfg)
	images := handler.NewImageHandler(app.ImageService, app.Cfg.MaxUploadSize)

	mux := http.NewServeMux()

	// ============================================================================
	// SETUP
	// ============================================================================

	mux.HandleFunc("GET /api/health", health.Health)
	mux.HandleFunc("GET /api/config/status", setup.Status)
	mux.HandleFunc("POST /api/config", setup.Save)

	// ============================================================================
	// AUTH
	// ============================================================================

	// OAuth (rate limited, shared budget per IP)
	rateLimiter := middleware.RateLimit(app.Cfg.AuthRateLimit, app.Cfg.AuthRateWindow, app.Cfg.TrustedProxies)
	mux.HandleFunc("GET /api/auth/login", rateLimiter(auth.Login))
	mux.HandleFunc("GET "+handler.GoogleCallbackPath, rateLimiter(auth.GoogleCallback))

	mux.HandleFunc("POST /api/auth/logout", auth.Logout)
	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(auth.Me))

	// Development sign-in bypass
	if app.Cfg.DevLoginEnabled() {
		mux.HandleFunc("POST /api/auth/dev-login", auth.DevLogin)
		mux.HandleFunc("GET /api/auth/dev-login", auth.DevLogin)
		mux.HandleFunc("POST /api/auth/dev-logout", auth.DevLogout)
	}

	// ============================================================================
	// IMAGES
	// ============================================================================

	mux.HandleFunc("POST /api/images", middleware.RequireAuth(images.Upload))
	mux.HandleFunc("GET /api/images/search", images.Search)
	mux.HandleFunc("GET /api/images/{id}/thumb", images.Thumb)
	mux.HandleFunc("GET /api/images/{id}/original", images.Original)

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", health.NotFound)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.RequestID, // Request id first so every later log line carries it
		middleware.Metrics(middleware.DefaultMetricsConfig()),
		middleware.RequestLogging,
		middleware.SecurityHeaders,
		middleware.AuthMiddleware(app.AuthService),
	)
}
