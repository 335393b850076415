package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/app/observability/metrics"
	"github.com/FACorreiaa/citcs-portal/internal/app/renderer"
	"github.com/FACorreiaa/citcs-portal/internal/app/session"
	"github.com/FACorreiaa/citcs-portal/internal/app/views"
)

// AdminPath is where a successful sign in or sign up lands.
const AdminPath = "/admin"

type SignInRequest struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

type SignUpRequest struct {
	DisplayName string `form:"display_name"`
	Email       string `form:"email"`
	Password    string `form:"password"`
}

type AuthHandlers struct {
	logger *zap.Logger
	// settleWait bounds how long a successful sign in waits for the role
	// lookup before redirecting.
	settleWait time.Duration
}

func NewAuthHandlers(logger *zap.Logger, settleWait time.Duration) *AuthHandlers {
	return &AuthHandlers{logger: logger, settleWait: settleWait}
}

// ShowAuthPage renders the sign in and sign up tabs. Visitors who are already
// signed in go straight to the console.
func (h *AuthHandlers) ShowAuthPage(c *gin.Context) {
	if entry := session.EntryFrom(c); entry != nil && entry.Manager.Snapshot().Authenticated() {
		renderer.Redirect(c, AdminPath)
		return
	}
	tab := views.TabSignIn
	if c.Query("tab") == string(views.TabSignUp) {
		tab = views.TabSignUp
	}
	h.renderForm(c, http.StatusOK, views.AuthForm{Tab: tab})
}

func (h *AuthHandlers) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderForm(c, http.StatusBadRequest, views.AuthForm{Error: "Enter your email and password."})
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	entry := session.EntryFrom(c)
	if entry == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	err := entry.Manager.SignIn(c.Request.Context(), req.Email, req.Password)
	h.record(c, "signin", err)
	if err != nil {
		h.logger.Info("Sign in failed", zap.String("email", req.Email), zap.Error(err))
		status, msg := failure(err)
		h.renderForm(c, status, views.AuthForm{Email: req.Email, Error: msg})
		return
	}

	h.establish(c, entry)
}

func (h *AuthHandlers) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderForm(c, http.StatusBadRequest, views.AuthForm{Tab: views.TabSignUp, Error: "Fill in every field."})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	form := views.AuthForm{Tab: views.TabSignUp, Email: req.Email, DisplayName: req.DisplayName}

	entry := session.EntryFrom(c)
	if entry == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	err := entry.Manager.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	h.record(c, "signup", err)
	if err != nil {
		h.logger.Info("Sign up failed", zap.String("email", req.Email), zap.Error(err))
		status, msg := failure(err)
		form.Error = msg
		h.renderForm(c, status, form)
		return
	}

	h.establish(c, entry)
}

// SignOut always ends the local session, even when revoking the refresh
// token fails.
func (h *AuthHandlers) SignOut(c *gin.Context) {
	entry := session.EntryFrom(c)
	if entry == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	err := entry.Manager.SignOut(c.Request.Context())
	h.record(c, "signout", err)
	if err != nil {
		h.logger.Warn("Sign out could not revoke the refresh token", zap.Error(err))
	}
	h.persistAndRedirect(c, "/")
}

// establish lets the new identity settle, moves the browser session to a
// fresh id and sends the visitor to the console.
func (h *AuthHandlers) establish(c *gin.Context, entry *session.Entry) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.settleWait)
	defer cancel()
	if _, err := entry.Manager.Settle(ctx); err != nil {
		h.logger.Debug("Role not settled before redirect", zap.Error(err))
	}

	if err := session.Rotate(c); err != nil {
		h.logger.Error("Failed to rotate browser session", zap.Error(err))
	}
	renderer.Redirect(c, AdminPath)
}

func (h *AuthHandlers) persistAndRedirect(c *gin.Context, to string) {
	if err := session.Persist(c); err != nil {
		h.logger.Error("Failed to save browser session", zap.Error(err))
	}
	renderer.Redirect(c, to)
}

func (h *AuthHandlers) renderForm(c *gin.Context, status int, form views.AuthForm) {
	// htmx only swaps successful responses
	if c.GetHeader("HX-Request") == "true" {
		status = http.StatusOK
	}
	renderer.HTML(c, status, "Sign in", views.Page("Sign in", "", views.AuthPage(form)))
}

func (h *AuthHandlers) record(c *gin.Context, action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.Get().AuthRequestsTotal.Add(c.Request.Context(), 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func failure(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "An account with this email already exists."
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity, validationMessage(err)
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again."
	}
}

// validationMessage turns "password must be ...: <sentinel>" into a sentence.
func validationMessage(err error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+models.ErrValidation.Error())
	if msg == "" || msg == models.ErrValidation.Error() {
		return "Check the form and try again."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
