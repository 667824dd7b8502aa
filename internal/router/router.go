package router

import (
	"os"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Brownie44l1/sopp-api/internal/handlers"
	"github.com/Brownie44l1/sopp-api/internal/middleware"
)

type Options struct {
	StaticDir    string
	AllowOrigins []string
}

// Setup creates the gin engine with all routes registered.
func Setup(h *handlers.Handler, opts Options, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(opts.AllowOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	router.GET("/", h.Index)
	router.POST("/analyze", h.Analyze)
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			router.Static("/static", opts.StaticDir)
		} else {
			logger.Info("Static directory not found, /static disabled", zap.String("dir", opts.StaticDir))
		}
	}

	return router
}
