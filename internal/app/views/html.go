// Package views holds the templ components of the public site and the admin
// console.
package views

import (
	"context"
	"io"
	"strconv"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"
)

// out accumulates the first write error so components read top to bottom.
type out struct {
	ctx context.Context
	w   io.Writer
	err error
}

func newOut(ctx context.Context, w io.Writer) *out {
	return &out{ctx: ctx, w: w}
}

func (o *out) raw(parts ...string) {
	for _, p := range parts {
		if o.err != nil {
			return
		}
		_, o.err = io.WriteString(o.w, p)
	}
}

func (o *out) text(s string) {
	o.raw(templ.EscapeString(s))
}

func (o *out) child(c templ.Component) {
	if o.err != nil || c == nil {
		return
	}
	o.err = c.Render(o.ctx, o.w)
}

func attr(name, value string) string {
	return " " + name + `="` + templ.EscapeString(value) + `"`
}

func classes(base string, extra ...string) string {
	return attr("class", twmerge.Merge(append([]string{base}, extra...)...))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// Text renders s escaped.
func Text(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.text(s)
		return o.err
	})
}

const (
	buttonClass      = "inline-flex items-center rounded-md bg-blue-700 px-4 py-2 text-sm font-medium text-white hover:bg-blue-800"
	dangerButton     = "bg-red-600 hover:bg-red-700"
	inputClass       = "block w-full rounded-md border border-gray-300 px-3 py-2 text-sm"
	cardClass        = "rounded-lg border border-gray-200 bg-white p-6 shadow-sm"
	alertClass       = "rounded-md border px-4 py-3 text-sm"
	alertErrorClass  = "border-red-200 bg-red-50 text-red-800"
	alertOKClass     = "border-green-200 bg-green-50 text-green-800"
	alertNoticeClass = "border-amber-200 bg-amber-50 text-amber-900"
)

// Flash is an inline status message.
type Flash struct {
	Kind    FlashKind
	Message string
}

type FlashKind int

const (
	FlashNone FlashKind = iota
	FlashSuccess
	FlashError
)

func (o *out) flash(f Flash) {
	if f.Kind == FlashNone || f.Message == "" {
		return
	}
	kind, role := alertOKClass, "status"
	if f.Kind == FlashError {
		kind, role = alertErrorClass, "alert"
	}
	o.raw(`<div`, attr("role", role), attr("data-flash", flashName(f.Kind)), classes(alertClass, kind), `>`)
	o.text(f.Message)
	o.raw(`</div>`)
}

func flashName(k FlashKind) string {
	if k == FlashError {
		return "error"
	}
	return "success"
}
