// Package guard derives what the admin console may show from the visitor's
// session snapshot. Every admin request takes one snapshot and decides with
// it, so a page never mixes two views of the same visitor.
package guard

import (
	"context"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/renderer"
	"github.com/FACorreiaa/citcs-portal/internal/app/session"
	"github.com/FACorreiaa/citcs-portal/internal/app/views"
)

// Decision is the route level outcome for a snapshot.
type Decision int

const (
	// Loading shows a neutral placeholder: never content, never a redirect.
	Loading Decision = iota
	// Redirect sends anonymous visitors to the auth page.
	Redirect
	// NoRole lets the request through with an unprivileged snapshot; every
	// page then swaps its body for the matching notice.
	NoRole
	Allow
)

func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case NoRole:
		return "no_role"
	case Allow:
		return "allow"
	}
	return "unknown"
}

const (
	AuthPath    = "/auth"
	snapshotKey = "guard_snapshot"
)

// Evaluate maps a snapshot to a decision.
func Evaluate(s session.Snapshot) Decision {
	switch {
	case s.Loading:
		return Loading
	case s.User == nil:
		return Redirect
	case !s.IsAdmin():
		return NoRole
	default:
		return Allow
	}
}

type Guard struct {
	logger *zap.Logger
	settle time.Duration
}

// New returns a guard that waits up to settle for a pending lookup before
// answering with the loading placeholder.
func New(logger *zap.Logger, settle time.Duration) *Guard {
	return &Guard{logger: logger, settle: settle}
}

// Shell applies Evaluate to every request it wraps. It needs session.Middleware
// to run first.
func (g *Guard) Shell() gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := session.EntryFrom(c)
		if entry == nil {
			g.logger.Error("Admin route reached without a browser session")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		snap := g.settled(c.Request.Context(), entry.Manager)
		decision := Evaluate(snap)
		switch decision {
		case Loading:
			c.Header("Cache-Control", "no-store")
			renderer.HTML(c, http.StatusOK, "loading", views.Loading(1))
			c.Abort()
		case Redirect:
			renderer.Redirect(c, AuthPath)
		case NoRole, Allow:
			c.Set(snapshotKey, snap)
			c.Next()
		}
	}
}

func (g *Guard) settled(ctx context.Context, m *session.Manager) session.Snapshot {
	snap := m.Snapshot()
	if !snap.Loading || g.settle <= 0 {
		return snap
	}
	ctx, cancel := context.WithTimeout(ctx, g.settle)
	defer cancel()
	snap, err := m.Await(ctx, func(s session.Snapshot) bool { return !s.Loading })
	if err != nil {
		g.logger.Debug("Session still loading after settle wait", zap.Duration("settle", g.settle))
	}
	return snap
}

// SnapshotFrom returns the snapshot the guard decided with. Outside Shell it
// returns the zero snapshot, which grants nothing.
func SnapshotFrom(c *gin.Context) session.Snapshot {
	if v, ok := c.Get(snapshotKey); ok {
		if s, ok := v.(session.Snapshot); ok {
			return s
		}
	}
	return session.Snapshot{}
}

// RequireConsole replaces the dashboard with the "no admin role" notice for
// signed in users without admin access.
func RequireConsole(c *gin.Context) bool {
	if SnapshotFrom(c).IsAdmin() {
		return true
	}
	Render(c, "Dashboard", "Dashboard", views.NoRoleNotice())
	return false
}

// RequireAdmin replaces the page with the access notice unless the visitor
// may manage content. It reports whether the page may proceed.
func RequireAdmin(c *gin.Context, page string) bool {
	if SnapshotFrom(c).IsAdmin() {
		return true
	}
	Render(c, "No access", "", views.AdminRequired(page))
	return false
}

// RequireSuperAdmin replaces the users panel with the super admin block for
// every other role.
func RequireSuperAdmin(c *gin.Context) bool {
	if SnapshotFrom(c).IsSuperAdmin() {
		return true
	}
	Render(c, "Users", "Users", views.SuperAdminOnly())
	return false
}

// Render writes body inside the admin shell. htmx requests get the body only.
func Render(c *gin.Context, title, active string, body templ.Component) {
	if c.GetHeader("HX-Request") == "true" && c.GetHeader("HX-Boosted") != "true" {
		renderer.HTML(c, http.StatusOK, title, body)
		return
	}
	snap := SnapshotFrom(c)
	user := views.ShellUser{Email: snap.Email(), Role: snap.Role}
	renderer.HTML(c, http.StatusOK, title, views.AdminShell(title, active, user, body))
}

type statusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role"`
	Loading       bool   `json:"loading"`
	Decision      string `json:"decision"`
}

// Status reports the current snapshot as JSON. The loading placeholder polls it.
func Status(c *gin.Context) {
	entry := session.EntryFrom(c)
	if entry == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	snap := entry.Manager.Snapshot()
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, statusResponse{
		Authenticated: snap.Authenticated(),
		Email:         snap.Email(),
		Role:          snap.Role.Label(),
		Loading:       snap.Loading,
		Decision:      Evaluate(snap).String(),
	})
}
