package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

// UsersPanelData drives the role assignment panel.
type UsersPanelData struct {
	Users      []models.UserWithRole
	Lookup     string
	Role       models.Role
	Submitting bool
	Flash      Flash
}

// UsersPanel lists every profile with its role and offers the assignment form.
func UsersPanel(d UsersPanelData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.raw(`<section id="users-panel" class="space-y-6"><h1 class="text-2xl font-bold">Users</h1>`)
		o.flash(d.Flash)

		o.raw(`<form id="assign-role" method="post" action="/admin/users/assign" hx-post="/admin/users/assign"`,
			` hx-target="#users-panel" hx-swap="outerHTML"`, classes(cardClass, "flex flex-wrap items-end gap-4"), `>`)
		o.raw(`<label class="flex-1 text-sm font-medium">Display name or user ID<input name="lookup" type="text" required`,
			attr("value", d.Lookup), classes(inputClass, "mt-1"), `></label>`)
		o.raw(`<label class="text-sm font-medium">Role<select name="role"`, classes(inputClass, "mt-1"), `>`)
		selected := d.Role
		if !selected.Valid() {
			selected = models.RoleEditor
		}
		for _, r := range models.AssignableRoles {
			o.raw(`<option`, attr("value", r.String()))
			if r == selected {
				o.raw(` selected`)
			}
			o.raw(`>`)
			o.text(r.Label())
			o.raw(`</option>`)
		}
		o.raw(`</select></label><button type="submit"`, classes(buttonClass))
		if d.Submitting {
			o.raw(` disabled`)
		}
		o.raw(`>Assign role</button></form>`)

		if len(d.Users) == 0 {
			o.raw(`<p id="no-users" class="text-gray-500">No users found.</p></section>`)
			return o.err
		}

		o.raw(`<table class="w-full rounded-lg bg-white text-left text-sm shadow-sm"><thead><tr>`,
			`<th class="p-3">Display name</th><th class="p-3">User ID</th><th class="p-3">Role</th><th class="p-3"></th></tr></thead><tbody>`)
		for _, u := range d.Users {
			o.raw(`<tr class="border-t"`, attr("data-user-id", u.UserID), `><td class="p-3">`)
			o.text(u.DisplayName)
			o.raw(`</td><td class="p-3 font-mono text-xs"`, attr("title", u.UserID), `>`)
			o.text(u.ShortID())
			o.raw(`</td><td class="p-3">`)
			if u.Role.Valid() {
				o.raw(`<span data-role class="rounded-full bg-blue-100 px-2 py-1 text-xs text-blue-800">`)
				o.text(u.Role.Label())
				o.raw(`</span>`)
			} else {
				o.raw(`<span data-role class="text-gray-400">No role</span>`)
			}
			o.raw(`</td><td class="p-3 text-right">`)
			if u.RoleID != "" {
				action := "/admin/users/" + u.RoleID + "/delete"
				o.raw(`<form method="post"`, attr("action", action), attr("hx-post", action),
					` hx-target="#users-panel" hx-swap="outerHTML" hx-confirm="Remove this role?">`,
					`<button type="submit"`, classes(buttonClass, dangerButton, "px-3 py-1"), `>Remove</button></form>`)
			}
			o.raw(`</td></tr>`)
		}
		o.raw(`</tbody></table></section>`)
		return o.err
	})
}
