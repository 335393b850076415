package views

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

func render(t *testing.T, c templ.Component) *goquery.Document {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(context.Background(), &sb))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sb.String()))
	require.NoError(t, err, "failed to read rendered HTML")
	return doc
}

func TestNotices(t *testing.T) {
	t.Run("it renders the no role notice", func(t *testing.T) {
		doc := render(t, NoRoleNotice())
		assert.Equal(t, "No admin role assigned. Contact a super admin.", doc.Find("#no-role p").Text())
	})

	t.Run("it names the page an admin is required for", func(t *testing.T) {
		doc := render(t, AdminRequired("announcements"))
		assert.Equal(t, "You need admin access to manage announcements.", doc.Find("#admin-required p").Text())
	})

	t.Run("it renders the super admin block", func(t *testing.T) {
		doc := render(t, SuperAdminOnly())
		assert.Equal(t, "Super Admin Only", doc.Find("#super-admin-only h2").Text())
		assert.Equal(t, "Only super admins can manage user roles.", doc.Find("#super-admin-only p").Text())
	})
}

func TestLoadingCarriesNoConsoleChrome(t *testing.T) {
	doc := render(t, Loading(1))
	assert.Equal(t, 1, doc.Find("#session-loading").Length())
	assert.Zero(t, doc.Find("#admin-sidebar").Length())
	assert.Zero(t, doc.Find("form").Length())
	content, _ := doc.Find(`meta[http-equiv="refresh"]`).Attr("content")
	assert.Equal(t, "1", content)
}

func TestAdminShell(t *testing.T) {
	doc := render(t, AdminShell("Users", "Users", ShellUser{Email: "jane@citcs.edu", Role: models.RoleSuperAdmin}, Text("body")))

	assert.Equal(t, len(models.AdminNav.Items), doc.Find("#admin-sidebar nav a").Length())
	assert.Equal(t, "Users", doc.Find(`#admin-sidebar a[aria-current="page"]`).Text())
	assert.Equal(t, "jane@citcs.edu", doc.Find("[data-user-email]").Text())
	assert.Equal(t, "super admin", doc.Find("[data-user-role]").Text())
	action, _ := doc.Find("footer form").Attr("action")
	assert.Equal(t, "/auth/signout", action)
	assert.Equal(t, "body", doc.Find("#admin-main").Text())
}

func TestDashboard(t *testing.T) {
	t.Run("it greets users without a role", func(t *testing.T) {
		doc := render(t, Dashboard("ed@citcs.edu", models.RoleNone, nil))
		assert.Equal(t, "Welcome back, ed@citcs.edu. Role: none", doc.Find("#greeting").Text())
		assert.Equal(t, "-", doc.Find(`[data-entity="gallery"] [data-count]`).Text())
	})

	t.Run("it shows counts", func(t *testing.T) {
		doc := render(t, Dashboard("a@citcs.edu", models.RoleAdmin, models.DashboardCounts{models.EntityResearch: 7}))
		assert.Equal(t, "Welcome back, a@citcs.edu. Role: admin", doc.Find("#greeting").Text())
		assert.Equal(t, "7", doc.Find(`[data-entity="research"] [data-count]`).Text())
	})
}

func TestAuthPage(t *testing.T) {
	t.Run("it renders the sign in form by default", func(t *testing.T) {
		doc := render(t, AuthPage(AuthForm{Email: "jane@citcs.edu", Error: "Invalid email or password."}))
		form := doc.Find("form")
		hxPost, _ := form.Attr("hx-post")
		assert.Equal(t, "/auth/signin", hxPost)
		assert.Zero(t, form.Find("input[name='display_name']").Length())
		value, _ := form.Find("input[name='email']").Attr("value")
		assert.Equal(t, "jane@citcs.edu", value)
		assert.Equal(t, "Invalid email or password.", doc.Find("[data-flash='error']").Text())
	})

	t.Run("it renders the sign up form", func(t *testing.T) {
		doc := render(t, AuthPage(AuthForm{Tab: TabSignUp}))
		form := doc.Find("form")
		action, _ := form.Attr("action")
		assert.Equal(t, "/auth/signup", action)
		assert.Equal(t, 1, form.Find("input[name='display_name']").Length())
		minLength, _ := form.Find("input[name='password']").Attr("minlength")
		assert.Equal(t, "6", minLength)
	})
}

func TestUsersPanel(t *testing.T) {
	t.Run("it reports an empty listing", func(t *testing.T) {
		doc := render(t, UsersPanel(UsersPanelData{}))
		assert.Equal(t, "No users found.", doc.Find("#no-users").Text())
	})

	t.Run("it lists users with their roles", func(t *testing.T) {
		doc := render(t, UsersPanel(UsersPanelData{Users: []models.UserWithRole{
			{UserID: "11111111-2222-3333-4444-555555555555", DisplayName: "Jane Cruz", RoleID: "r1", Role: models.RoleAdmin},
			{UserID: "u2", DisplayName: "Ed <script>", CreatedAt: time.Now()},
		}}))

		rows := doc.Find("tbody tr")
		require.Equal(t, 2, rows.Length())
		first := rows.Eq(0)
		assert.Equal(t, "Jane Cruz", first.Find("td").Eq(0).Text())
		assert.Equal(t, "11111111...", first.Find("td").Eq(1).Text())
		assert.Equal(t, "admin", first.Find("[data-role]").Text())
		action, _ := first.Find("form").Attr("action")
		assert.Equal(t, "/admin/users/r1/delete", action)

		second := rows.Eq(1)
		assert.Equal(t, "Ed <script>", second.Find("td").Eq(0).Text())
		assert.Equal(t, "No role", second.Find("[data-role]").Text())
		assert.Zero(t, second.Find("form").Length())
	})

	t.Run("it retains the lookup and shows the failure", func(t *testing.T) {
		doc := render(t, UsersPanel(UsersPanelData{
			Lookup: "nobody",
			Role:   models.RoleAdmin,
			Flash:  Flash{Kind: FlashError, Message: "No user found. Try entering their display name or user ID."},
		}))
		value, _ := doc.Find("input[name='lookup']").Attr("value")
		assert.Equal(t, "nobody", value)
		selected, _ := doc.Find("option[selected]").Attr("value")
		assert.Equal(t, "admin", selected)
		assert.Equal(t, "No user found. Try entering their display name or user ID.", doc.Find("[role='alert']").Text())
	})
}

func TestContentViews(t *testing.T) {
	info, ok := models.LookupEntity(models.EntityAnnouncements)
	require.True(t, ok)

	t.Run("it renders the edit form", func(t *testing.T) {
		doc := render(t, ContentForm(ContentFormData{
			Info: info,
			ID:   "a1",
			Input: models.RecordInput{
				Title:      "Enrollment",
				IsFeatured: true,
				Attributes: map[string]string{"venue": "Hall A", "date": "June 3"},
			},
			UploadEnabled: true,
		}))
		action, _ := doc.Find("form").Attr("action")
		assert.Equal(t, "/admin/announcements/a1", action)
		assert.Equal(t, "date: June 3\nvenue: Hall A", doc.Find("textarea[name='attributes']").Text())
		_, checked := doc.Find("input[name='is_featured']").Attr("checked")
		assert.True(t, checked)
		assert.Equal(t, 1, doc.Find("input[type='file']").Length())
	})

	t.Run("it lists records", func(t *testing.T) {
		doc := render(t, ContentList(info, []models.Record{{ID: "a1", Title: "Enrollment"}}, Flash{}))
		href, _ := doc.Find("tbody a").Attr("href")
		assert.Equal(t, "/admin/announcements/a1", href)
	})

	t.Run("it renders public cards", func(t *testing.T) {
		doc := render(t, Page("Announcements", "Announcements", PublicList(info, []models.Record{
			{ID: "a1", Title: "Enrollment", Summary: "Opens Monday", Attributes: map[string]string{"venue": "Hall A"}},
		})))
		assert.Equal(t, "Enrollment", doc.Find("article h2").Text())
		assert.Equal(t, "Hall A", doc.Find("article dd").Text())
		assert.Equal(t, "Announcements", doc.Find(`header a[aria-current="page"]`).Text())
	})
}

func TestContact(t *testing.T) {
	doc := render(t, Page("Contact", "Contact", Contact(models.ContactDetails)))
	assert.Equal(t, len(models.ContactDetails), doc.Find("#contact dt").Length())
	assert.Equal(t, "Address", doc.Find("#contact dt").First().Text())
	assert.Equal(t, "citcs.hub@university.edu", doc.Find("#contact dd").Eq(2).Text())
	assert.Equal(t, "Contact", doc.Find(`header a[aria-current="page"]`).Text())
}
