package views

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// Loading is the neutral placeholder served while the visitor's session or
// role is still being resolved. It carries no console chrome and reloads
// itself once the session endpoint reports a settled state.
func Loading(retryAfterSeconds int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.head("Loading - "+siteName, `<meta http-equiv="refresh" content="`+strconv.Itoa(retryAfterSeconds)+`">`)
		o.raw(`<body class="flex min-h-screen items-center justify-center bg-gray-100">`)
		o.raw(`<div id="session-loading" role="status" aria-live="polite"`,
			` hx-get="/admin/session" hx-trigger="every 1s" hx-swap="none"`,
			` hx-on::after-request="if(JSON.parse(event.detail.xhr.responseText).loading===false){location.reload()}"`,
			` class="h-10 w-10 animate-spin rounded-full border-4 border-blue-200 border-t-blue-700">`,
			`<span class="sr-only">Loading</span></div>`)
		o.raw(`</body></html>`)
		return o.err
	})
}

// NoRoleNotice replaces the console body for signed in users without an
// admin role.
func NoRoleNotice() templ.Component {
	return notice("no-role", "No admin role assigned", "No admin role assigned. Contact a super admin.")
}

// AdminRequired replaces an editor page for users who may not manage page.
func AdminRequired(page string) templ.Component {
	return notice("admin-required", "Access denied", "You need admin access to manage "+page+".")
}

// SuperAdminOnly replaces the users panel for every role but super admin.
func SuperAdminOnly() templ.Component {
	return notice("super-admin-only", "Super Admin Only", "Only super admins can manage user roles.")
}

func notice(id, title, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.raw(`<section`, attr("id", id), classes(alertClass, alertNoticeClass, "p-6"), `><h2 class="text-lg font-semibold">`)
		o.text(title)
		o.raw(`</h2><p class="mt-2">`)
		o.text(message)
		o.raw(`</p></section>`)
		return o.err
	})
}

// ErrorPage is a minimal body for failures that cannot be shown inline.
func ErrorPage(status int, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.raw(`<section id="error"`, classes(cardClass, "text-center"), `><h1 class="text-2xl font-bold">`)
		o.text(strconv.Itoa(status))
		o.raw(`</h1><p class="mt-2 text-gray-600">`)
		o.text(message)
		o.raw(`</p></section>`)
		return o.err
	})
}
