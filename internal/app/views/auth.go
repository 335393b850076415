package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

type AuthTab string

const (
	TabSignIn AuthTab = "signin"
	TabSignUp AuthTab = "signup"
)

// AuthForm is the state of the auth page. Passwords are never echoed back.
type AuthForm struct {
	Tab         AuthTab
	Email       string
	DisplayName string
	Error       string
}

// AuthPage renders the sign in and sign up tabs; only the active tab's form is shown.
func AuthPage(form AuthForm) templ.Component {
	if form.Tab != TabSignUp {
		form.Tab = TabSignIn
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.raw(`<section id="auth"`, classes(cardClass, "mx-auto max-w-md"), `>`)
		o.raw(`<div role="tablist" class="mb-6 flex gap-4 border-b">`)
		o.tab(TabSignIn, "Sign In", form.Tab)
		o.tab(TabSignUp, "Sign Up", form.Tab)
		o.raw(`</div>`)
		if form.Error != "" {
			o.flash(Flash{Kind: FlashError, Message: form.Error})
		}

		action := "/auth/signin"
		if form.Tab == TabSignUp {
			action = "/auth/signup"
		}
		o.raw(`<form method="post"`, attr("action", action), attr("hx-post", action),
			` hx-target="#auth" hx-swap="outerHTML" class="mt-4 space-y-4">`)
		if form.Tab == TabSignUp {
			o.field("display_name", "Display name", "text", form.DisplayName, "")
		}
		o.field("email", "Email", "email", form.Email, "")
		o.field("password", "Password", "password", "", ` minlength="6"`)
		label := "Sign In"
		if form.Tab == TabSignUp {
			label = "Create account"
		}
		o.raw(`<button type="submit"`, classes(buttonClass, "w-full justify-center"), `>`, label, `</button></form></section>`)
		return o.err
	})
}

func (o *out) tab(tab AuthTab, label string, active AuthTab) {
	cls := classes("pb-2 text-sm text-gray-500")
	selected := "false"
	if tab == active {
		cls = classes("pb-2 text-sm text-gray-500", "border-b-2 border-blue-700 text-blue-800")
		selected = "true"
	}
	o.raw(`<a role="tab"`, attr("href", "/auth?tab="+string(tab)), attr("aria-selected", selected), cls, `>`, label, `</a>`)
}

func (o *out) field(name, label, typ, value, extra string) {
	o.raw(`<label class="block text-sm font-medium">`, label,
		`<input required`, attr("name", name), attr("type", typ), attr("value", value), extra, classes(inputClass, "mt-1"), `></label>`)
}
