package roleassign

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/domain"
	"github.com/FACorreiaa/citcs-portal/internal/app/guard"
	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/app/session"
	"github.com/FACorreiaa/citcs-portal/internal/app/views"
)

type Handlers struct {
	*domain.BaseHandler
	svc       *Service
	workflows *cache.Cache
	logger    *zap.Logger
}

// NewHandlers keeps one Workflow per browser session for idleTTL after its
// last use.
func NewHandlers(svc *Service, idleTTL time.Duration, logger *zap.Logger, base *domain.BaseHandler) *Handlers {
	return &Handlers{
		BaseHandler: base,
		svc:         svc,
		workflows:   cache.New(idleTTL, idleTTL),
		logger:      logger,
	}
}

func (h *Handlers) workflow(c *gin.Context) *Workflow {
	key := ""
	if entry := session.EntryFrom(c); entry != nil {
		key = entry.ID
	}
	if v, ok := h.workflows.Get(key); ok {
		h.workflows.SetDefault(key, v)
		return v.(*Workflow)
	}
	w := NewWorkflow()
	if err := h.workflows.Add(key, w, cache.DefaultExpiration); err != nil {
		// lost the race to a concurrent request from the same session
		if v, ok := h.workflows.Get(key); ok {
			return v.(*Workflow)
		}
	}
	return w
}

// ShowUsers renders the users panel for super admins.
func (h *Handlers) ShowUsers(c *gin.Context) {
	if !guard.RequireSuperAdmin(c) {
		return
	}
	lookup, role := h.workflow(c).Input()
	h.renderPanel(c, views.UsersPanelData{Lookup: lookup, Role: role})
}

// AssignRole handles the assignment form. The acting user always comes from
// the verified session, never from the form.
func (h *Handlers) AssignRole(c *gin.Context) {
	if !guard.RequireSuperAdmin(c) {
		return
	}
	actorID := guard.SnapshotFrom(c).User.UserID
	req := Request{
		Lookup: strings.TrimSpace(c.PostForm("lookup")),
		Role:   models.Role(strings.TrimSpace(c.PostForm("role"))),
	}

	wf := h.workflow(c)
	outcome, err := wf.Submit(c.Request.Context(), req, func(ctx context.Context, r Request) (string, error) {
		res, err := h.svc.Assign(ctx, actorID, r)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s is now %s.", res.Profile.DisplayName, res.Role.Label()), nil
	})
	if errors.Is(err, models.ErrBusy) {
		h.renderPanel(c, views.UsersPanelData{
			Lookup:     req.Lookup,
			Role:       req.Role,
			Submitting: true,
			Flash:      views.Flash{Kind: views.FlashError, Message: FailureMessage(err)},
		})
		return
	}

	data := views.UsersPanelData{Flash: flashFor(outcome)}
	data.Lookup, data.Role = wf.Input()
	h.renderPanel(c, data)
}

// RemoveRole deletes one role row; the user keeps their account.
func (h *Handlers) RemoveRole(c *gin.Context) {
	if !guard.RequireSuperAdmin(c) {
		return
	}
	actorID := guard.SnapshotFrom(c).User.UserID
	roleID := c.Param("id")

	flash := views.Flash{Kind: views.FlashSuccess, Message: "Role removed."}
	if err := h.svc.RemoveRole(c.Request.Context(), actorID, roleID); err != nil {
		flash = views.Flash{Kind: views.FlashError, Message: FailureMessage(err)}
	}
	lookup, role := h.workflow(c).Input()
	h.renderPanel(c, views.UsersPanelData{Lookup: lookup, Role: role, Flash: flash})
}

// renderPanel refetches the full listing before every render.
func (h *Handlers) renderPanel(c *gin.Context, data views.UsersPanelData) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		h.RenderError(c, http.StatusInternalServerError, "Could not load users.", err)
		return
	}
	data.Users = users
	h.RenderAdmin(c, "Users", "Users", views.UsersPanel(data))
}

func flashFor(o Outcome) views.Flash {
	if o.OK {
		return views.Flash{Kind: views.FlashSuccess, Message: o.Message}
	}
	return views.Flash{Kind: views.FlashError, Message: o.Message}
}
