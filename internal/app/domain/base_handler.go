package domain

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/guard"
	"github.com/FACorreiaa/citcs-portal/internal/app/renderer"
	"github.com/FACorreiaa/citcs-portal/internal/app/views"
)

// BaseHandler carries what every domain handler renders with.
type BaseHandler struct {
	Logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	return &BaseHandler{Logger: logger}
}

// RenderAdmin writes content inside the admin shell, or alone for htmx swaps.
func (h *BaseHandler) RenderAdmin(c *gin.Context, title, activeNav string, content templ.Component) {
	guard.Render(c, title, activeNav, content)
}

// RenderPage writes a public page. htmx requests that are not boosted get the
// content only.
func (h *BaseHandler) RenderPage(c *gin.Context, title, activeNav string, content templ.Component) {
	if c.GetHeader("HX-Request") == "true" && c.GetHeader("HX-Boosted") != "true" {
		renderer.HTML(c, http.StatusOK, title, content)
		return
	}
	renderer.HTML(c, http.StatusOK, title, views.Page(title, activeNav, content))
}

// RenderError logs err and writes a generic error page with status.
func (h *BaseHandler) RenderError(c *gin.Context, status int, msg string, err error) {
	h.Logger.Error(msg,
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err))
	renderer.HTML(c, status, "Error", views.ErrorPage(status, msg))
}
