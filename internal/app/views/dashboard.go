package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

// Dashboard greets the visitor and shows the row count of every entity. A
// missing count renders as a dash.
func Dashboard(email string, role models.Role, counts models.DashboardCounts) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.raw(`<h1 class="text-2xl font-bold">Dashboard</h1><p id="greeting" class="mt-1 text-gray-600">`)
		o.text("Welcome back, " + email + ". Role: " + role.Label())
		o.raw(`</p><div class="mt-6 grid grid-cols-1 gap-4 md:grid-cols-3">`)
		for _, info := range models.Entities {
			o.raw(`<a`, attr("href", info.AdminPath()), attr("data-entity", string(info.Entity)), classes(cardClass, "hover:border-blue-300"), `>`)
			o.raw(`<p class="text-sm text-gray-500">`)
			o.text(info.Label)
			o.raw(`</p><p class="mt-2 text-3xl font-semibold" data-count>`)
			if n, ok := counts[info.Entity]; ok {
				o.text(itoa(n))
			} else {
				o.raw(`-`)
			}
			o.raw(`</p></a>`)
		}
		o.raw(`</div>`)
		return o.err
	})
}
