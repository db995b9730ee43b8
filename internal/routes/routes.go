package routes

import (
	"net/http"

	"github.com/slonweiss/node-proxy/internal/app"
	"github.com/slonweiss/node-proxy/internal/handler"
	"github.com/slonweiss/node-proxy/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	upload := handler.NewUploadHandler(app.IngestService, app.Cfg.MaxUploadBytes)
	feedback := handler.NewFeedbackHandler(app.FeedbackService, app.AuthService)
	image := handler.NewImageHandler(app.ImageRepository)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// Intake (rate limited)
	rateLimiter := middleware.RateLimitUpload()
	mux.HandleFunc("POST /upload", rateLimiter(upload.Multipart))
	mux.HandleFunc("POST /upload/raw", rateLimiter(upload.Raw))
	mux.HandleFunc("POST /upload/base64", rateLimiter(upload.Base64))

	// Feedback
	mux.HandleFunc("POST /feedback", feedback.Submit)

	// Readback
	mux.HandleFunc("GET /images/{hash}", image.Show)

	// Health
	mux.HandleFunc("GET /healthz", health.Healthz)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.Cors(app.Cfg.AllowedOrigins), // Must be first so preflights never reach business logic
		middleware.RequestID,
		middleware.ResolveOrigin(app.Cfg.AllowedOrigins),
		middleware.RequestLogging,
	)
}
