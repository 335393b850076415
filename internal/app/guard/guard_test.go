package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/app/session"
)

type stubProvider struct {
	initial *models.AuthSession
}

func (p *stubProvider) SignIn(context.Context, string, string) (*models.AuthSession, error) {
	return nil, models.ErrUnauthenticated
}

func (p *stubProvider) SignUp(context.Context, string, string, string) (*models.AuthSession, error) {
	return nil, models.ErrUnauthenticated
}

func (p *stubProvider) SignOut(context.Context) error { return nil }

func (p *stubProvider) CurrentSession(context.Context) (*models.AuthSession, error) {
	return p.initial, nil
}

func (p *stubProvider) Subscribe(func(models.IdentityEvent)) func() { return func() {} }
func (p *stubProvider) RefreshToken() string                      { return "" }
func (p *stubProvider) RefreshIfNeeded(context.Context) error     { return nil }

// roleOf resolves a fixed role, or blocks until the lookup context ends.
type roleOf struct {
	role  models.Role
	block bool
}

func (r roleOf) SelectRoleByUser(ctx context.Context, _ string) (models.Role, error) {
	if r.block {
		<-ctx.Done()
		return models.RoleNone, ctx.Err()
	}
	return r.role, nil
}

func entryFor(t *testing.T, signedIn bool, roles session.RoleResolver) *session.Entry {
	t.Helper()
	p := &stubProvider{}
	if signedIn {
		p.initial = &models.AuthSession{Identity: models.Identity{UserID: "u1", Email: "u1@citcs.edu"}}
	}
	m := session.NewManager(p, roles, zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(m.Stop)
	return &session.Entry{ID: "s1", Client: p, Manager: m}
}

func newRouter(entry *session.Entry, settle time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		session.Attach(c, entry)
		c.Next()
	})
	r.GET("/admin/session", Status)

	admin := r.Group("/admin", New(zap.NewNop(), settle).Shell())
	admin.GET("", func(c *gin.Context) {
		if !RequireConsole(c) {
			return
		}
		Render(c, "Dashboard", "Dashboard", nil)
	})
	admin.GET("/announcements", func(c *gin.Context) {
		if !RequireAdmin(c, "announcements") {
			return
		}
		c.String(http.StatusOK, "announcements editor")
	})
	admin.GET("/users", func(c *gin.Context) {
		if !RequireSuperAdmin(c) {
			return
		}
		c.String(http.StatusOK, "role assignment form")
	})
	return r
}

func get(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parse(t *testing.T, w *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(w.Body.String()))
	require.NoError(t, err)
	return doc
}

func TestEvaluate(t *testing.T) {
	user := &models.Identity{UserID: "u1"}
	tests := []struct {
		name string
		snap session.Snapshot
		want Decision
	}{
		{"initial check pending", session.Snapshot{Loading: true}, Loading},
		{"role lookup pending", session.Snapshot{User: user, Loading: true}, Loading},
		{"pending lookup of a super admin", session.Snapshot{User: user, Role: models.RoleSuperAdmin, Loading: true}, Loading},
		{"anonymous", session.Snapshot{}, Redirect},
		{"no role row", session.Snapshot{User: user}, NoRole},
		{"editor", session.Snapshot{User: user, Role: models.RoleEditor}, NoRole},
		{"admin", session.Snapshot{User: user, Role: models.RoleAdmin}, Allow},
		{"super admin", session.Snapshot{User: user, Role: models.RoleSuperAdmin}, Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.snap))
		})
	}
}

func TestShellWhileLoadingRendersOnlyThePlaceholder(t *testing.T) {
	r := newRouter(entryFor(t, true, roleOf{block: true}), 0)

	for _, path := range []string{"/admin", "/admin/announcements", "/admin/users"} {
		w := get(r, path)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Header().Get("Location"), path)
		assert.Empty(t, w.Header().Get("HX-Redirect"), path)

		doc := parse(t, w)
		assert.Equal(t, 1, doc.Find("#session-loading").Length(), path)
		assert.Zero(t, doc.Find("#admin-sidebar").Length(), path)
		assert.NotContains(t, w.Body.String(), "editor", path)
		assert.NotContains(t, w.Body.String(), "role assignment form", path)
	}
}

func TestShellWaitsForSettledRole(t *testing.T) {
	r := newRouter(entryFor(t, true, roleOf{role: models.RoleAdmin}), 2*time.Second)

	w := get(r, "/admin/announcements")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "announcements editor", w.Body.String())
}

func TestShellRedirectsAnonymousVisitors(t *testing.T) {
	r := newRouter(entryFor(t, false, roleOf{}), 2*time.Second)

	w := get(r, "/admin")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, AuthPath, w.Header().Get("Location"))

	hx := get(r, "/admin", "HX-Request", "true")
	assert.Equal(t, AuthPath, hx.Header().Get("HX-Redirect"))
}

func TestUserWithoutRoleSeesNoticeNotRedirect(t *testing.T) {
	r := newRouter(entryFor(t, true, roleOf{role: models.RoleNone}), 2*time.Second)

	w := get(r, "/admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Location"))

	doc := parse(t, w)
	assert.Equal(t, "No admin role assigned. Contact a super admin.", doc.Find("#no-role p").Text())
	assert.Equal(t, 1, doc.Find("#admin-sidebar").Length(), "navigation stays visible")
	assert.Equal(t, "none", doc.Find("[data-user-role]").Text())

	editor := parse(t, get(r, "/admin/announcements"))
	assert.Equal(t, "You need admin access to manage announcements.", editor.Find("#admin-required p").Text())
}

func TestEditorOpeningUsersPanelSeesSuperAdminBlock(t *testing.T) {
	r := newRouter(entryFor(t, true, roleOf{role: models.RoleEditor}), 2*time.Second)

	w := get(r, "/admin/users")
	doc := parse(t, w)
	assert.Equal(t, "Super Admin Only", doc.Find("#super-admin-only h2").Text())
	assert.NotContains(t, w.Body.String(), "role assignment form")
	assert.Zero(t, doc.Find("#assign-role").Length())
}

func TestAdminOpeningUsersPanelSeesSuperAdminBlock(t *testing.T) {
	r := newRouter(entryFor(t, true, roleOf{role: models.RoleAdmin}), 2*time.Second)

	doc := parse(t, get(r, "/admin/users"))
	assert.Equal(t, "Super Admin Only", doc.Find("#super-admin-only h2").Text())

	ok := get(r, "/admin/announcements")
	assert.Equal(t, "announcements editor", ok.Body.String())
}

func TestSuperAdminReachesUsersPanel(t *testing.T) {
	r := newRouter(entryFor(t, true, roleOf{role: models.RoleSuperAdmin}), 2*time.Second)

	w := get(r, "/admin/users")
	assert.Equal(t, "role assignment form", w.Body.String())
}

func TestRequireAdminWithoutShellGrantsNothing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/gallery", nil)

	assert.False(t, RequireAdmin(c, "gallery"))
	assert.Contains(t, w.Body.String(), "You need admin access to manage gallery.")
}

func TestStatusReportsSnapshot(t *testing.T) {
	r := newRouter(entryFor(t, true, roleOf{role: models.RoleEditor}), 0)

	require.Eventually(t, func() bool {
		var body statusResponse
		w := get(r, "/admin/session")
		if json.Unmarshal(w.Body.Bytes(), &body) != nil {
			return false
		}
		return !body.Loading && body.Role == "editor" && body.Decision == "no_role" && body.Email == "u1@citcs.edu"
	}, 2*time.Second, 10*time.Millisecond)
}
