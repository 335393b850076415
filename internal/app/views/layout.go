package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

const siteName = "CITCS"

func (o *out) head(title string, extraHead string) {
	o.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
		`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	o.raw(extraHead)
	o.raw(`<title>`)
	o.text(title)
	o.raw(`</title>`,
		`<link rel="stylesheet" href="/assets/css/app.css">`,
		`<script src="https://unpkg.com/htmx.org@2.0.4" defer></script>`,
		`</head>`)
}

// Page is the public site layout.
func Page(title, active string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.head(title+" - "+siteName, "")
		o.raw(`<body class="min-h-screen bg-gray-50 text-gray-900" hx-boost="true">`)
		o.raw(`<header class="border-b bg-white"><nav class="mx-auto flex max-w-6xl gap-6 px-4 py-4">`)
		o.raw(`<a href="/" class="font-bold text-blue-800">`, siteName, `</a>`)
		for _, item := range models.PublicNav.Items {
			o.navLink(item, active, "text-sm text-gray-600 hover:text-blue-800", "font-semibold text-blue-800")
		}
		o.raw(`<a href="/admin" class="ml-auto text-sm text-gray-500">Admin</a></nav></header>`)
		o.raw(`<main class="mx-auto max-w-6xl px-4 py-8">`)
		o.child(body)
		o.raw(`</main></body></html>`)
		return o.err
	})
}

func (o *out) navLink(item models.NavItem, active, base, activeClass string) {
	cls := classes(base)
	if item.Name == active {
		cls = classes(base, activeClass)
	}
	o.raw(`<a`, attr("href", item.URL), cls)
	if item.Name == active {
		o.raw(` aria-current="page"`)
	}
	o.raw(`>`)
	o.text(item.Name)
	o.raw(`</a>`)
}

// ShellUser is what the admin sidebar shows about the visitor.
type ShellUser struct {
	Email string
	Role  models.Role
}

// AdminShell is the admin console layout: sidebar, footer with sign out and
// the page body.
func AdminShell(title, active string, user ShellUser, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.head(title+" - "+siteName+" Admin", "")
		o.raw(`<body class="flex min-h-screen bg-gray-100 text-gray-900" hx-boost="true">`)
		o.raw(`<aside id="admin-sidebar" class="flex w-64 flex-col bg-blue-900 text-white">`)
		o.raw(`<div class="px-6 py-5 text-lg font-bold">`, siteName, ` Admin</div><nav class="flex-1 space-y-1 px-3">`)
		for _, item := range models.AdminNav.Items {
			o.navLink(item, active, "block rounded-md px-3 py-2 text-sm text-blue-100 hover:bg-blue-800", "bg-blue-800 text-white")
		}
		o.raw(`</nav><footer class="border-t border-blue-800 px-6 py-4 text-sm">`)
		o.raw(`<p data-user-email class="truncate">`)
		o.text(user.Email)
		o.raw(`</p><p data-user-role class="text-xs text-blue-200">`)
		o.text(user.Role.Label())
		o.raw(`</p><form method="post" action="/auth/signout" class="mt-3">`,
			`<button type="submit" class="text-blue-100 underline">Sign Out</button></form></footer></aside>`)
		o.raw(`<main id="admin-main" class="flex-1 p-8">`)
		o.child(body)
		o.raw(`</main></body></html>`)
		return o.err
	})
}
