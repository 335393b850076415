package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	middleware2 "github.com/FACorreiaa/citcs-portal/internal/app/middleware"
	"github.com/FACorreiaa/citcs-portal/internal/app/session"
	"github.com/FACorreiaa/citcs-portal/internal/routes"
)

// SetupRouter configures the Gin router with all middleware and routes. The
// returned registry is handed back to the Server so it can be closed.
func (s *Server) SetupRouter() (*gin.Engine, *session.Registry, error) {
	gin.SetMode(gin.ReleaseMode)

	r, err := newEngine(s.cfg.TrustedProxies)
	if err != nil {
		return nil, nil, err
	}

	r.Use(ginzap.GinzapWithConfig(s.logger, &ginzap.Config{
		UTC:        true,
		TimeFormat: time.RFC3339,
		Context:    zapContextFunc(),
		SkipPaths:  []string{"/healthz", "/admin/session"},
	}))
	r.Use(ginzap.RecoveryWithZap(s.logger, true))
	r.Use(middleware2.OTELGinMiddleware(s.cfg.Observability.ServiceName))
	r.Use(middleware2.MetricsMiddleware())
	r.Use(middleware2.CORSMiddleware())
	r.Use(middleware2.SecurityMiddleware())
	r.Use(sessions.Sessions(session.CookieName, s.cookieStore()))

	reg, err := routes.Setup(r, routes.Dependencies{
		Pool:        s.dbPool,
		Broadcaster: s.broadcaster,
		Uploader:    s.uploader,
		Config:      s.cfg,
	}, s.logger)
	if err != nil {
		return nil, nil, err
	}

	return r, reg, nil
}

// newEngine builds a bare engine that only believes X-Forwarded-For from the
// given proxies. With none, ClientIP is the peer address.
func newEngine(trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	return r, nil
}

// cookieStore signs the session cookie. It carries the session id and the
// refresh token only; everything else lives server side.
func (s *Server) cookieStore() cookie.Store {
	store := cookie.NewStore([]byte(s.cfg.Session.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(s.cfg.JWT.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return store
}

// zapContextFunc adds request and trace identifiers to the access log.
// Request bodies are never logged since they carry passwords.
func zapContextFunc() ginzap.Fn {
	return func(c *gin.Context) []zapcore.Field {
		fields := []zapcore.Field{}

		if requestID := c.Writer.Header().Get("X-Request-Id"); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}

		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}

		return fields
	}
}
