package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/ClassifiedsGo/pkg/health"
	"github.com/utafrali/ClassifiedsGo/pkg/middleware"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/service"
)

// RouterConfig carries the HTTP-facing settings.
type RouterConfig struct {
	ServiceName      string
	CORS             middleware.CORSConfig
	MaxUploadBytes   int64
	ImageCacheMaxAge int
	UploadRateLimit  float64
	UploadBurst      int
	TrustedProxies   []string
	PprofCIDRs       []string
}

// NewRouter creates a chi router with all media service routes registered.
func NewRouter(
	mediaService *service.MediaService,
	images ImageReader,
	locker OwnerLocker,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Profiling endpoints, allowlisted by peer address.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// Owner image API
	mediaHandler := NewMediaHandler(mediaService, locker, cfg.MaxUploadBytes, logger)

	r.Route("/api/v1/owners", func(r chi.Router) {
		r.With(RequireContentType("application/json")).Post("/", mediaHandler.RegisterOwner)
		r.Delete("/{kind}/{ownerId}", mediaHandler.RemoveOwner)
		r.Get("/{kind}/{ownerId}/image", mediaHandler.GetImage)
		r.With(
			middleware.RateLimit(cfg.UploadRateLimit, cfg.UploadBurst, cfg.TrustedProxies, logger),
			RequireContentType("multipart/form-data"),
		).Put("/{kind}/{ownerId}/image", mediaHandler.ReplaceImage)
	})

	// Stored image bytes
	imageHandler := NewImageHandler(images, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CacheControl(cfg.ImageCacheMaxAge, true))
		r.Get("/images/*", imageHandler.Serve)
		r.Head("/images/*", imageHandler.Serve)
	})

	return r
}
