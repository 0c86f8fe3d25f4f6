package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/tcpapi/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const adminNode = "tcpapi-admin"

// AdminRouter builds the admin HTTP surface for health, metrics and
// connection snapshots.
func (s *Service) AdminRouter() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, adminNode))
	r.Use(observability.RequestMetricsMiddleware(adminNode))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.startedAt).String(),
			"service": "tcpapi",
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		if !s.Ready() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":  s.Ready(),
			"listen": s.cfg.ListenAddr,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/connections", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active":      s.ActiveConnections(),
			"connections": s.Connections(),
		})
	})
	r.GET("/plugins", func(c *gin.Context) {
		reporter, ok := s.configs.(StatusReporter)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no plugin status available"})
			return
		}
		c.JSON(http.StatusOK, reporter.Status())
	})
	return r
}

func (s *Service) serveAdmin(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.AdminRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("gateway.Service.serveAdmin listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
