package views

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

// ContentList is the admin table of one entity.
func ContentList(info models.EntityInfo, records []models.Record, flash Flash) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.raw(`<section id="content-list" class="space-y-6"><div class="flex items-center justify-between"><h1 class="text-2xl font-bold">`)
		o.text(info.Label)
		o.raw(`</h1><a`, attr("href", info.AdminPath()+"/new"), classes(buttonClass), `>New `)
		o.text(info.Singular)
		o.raw(`</a></div>`)
		o.flash(flash)

		if len(records) == 0 {
			o.raw(`<p id="empty" class="text-gray-500">Nothing here yet.</p></section>`)
			return o.err
		}
		o.raw(`<table class="w-full rounded-lg bg-white text-left text-sm shadow-sm"><thead><tr>`,
			`<th class="p-3">Title</th><th class="p-3">Featured</th><th class="p-3">Created</th><th class="p-3"></th></tr></thead><tbody>`)
		for _, r := range records {
			edit := info.AdminPath() + "/" + r.ID
			o.raw(`<tr class="border-t"`, attr("data-id", r.ID), `><td class="p-3"><a class="text-blue-800"`, attr("href", edit), `>`)
			o.text(r.Title)
			o.raw(`</a></td><td class="p-3">`)
			if r.IsFeatured {
				o.raw(`Yes`)
			}
			o.raw(`</td><td class="p-3">`)
			o.text(r.CreatedAt.Format("Jan 2, 2006"))
			o.raw(`</td><td class="p-3 text-right"><form method="post"`, attr("action", edit+"/delete"),
				` hx-confirm="Delete this item?"><button type="submit"`, classes(buttonClass, dangerButton, "px-3 py-1"), `>Delete</button></form></td></tr>`)
		}
		o.raw(`</tbody></table></section>`)
		return o.err
	})
}

// ContentFormData is the state of the create/edit form. ID is empty when creating.
type ContentFormData struct {
	Info          models.EntityInfo
	ID            string
	Input         models.RecordInput
	Error         string
	UploadEnabled bool
}

func ContentForm(d ContentFormData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		action, heading := d.Info.AdminPath(), "New "+d.Info.Singular
		if d.ID != "" {
			action, heading = d.Info.AdminPath()+"/"+d.ID, "Edit "+d.Info.Singular
		}
		o.raw(`<section id="content-form" class="max-w-2xl space-y-4"><h1 class="text-2xl font-bold">`)
		o.text(heading)
		o.raw(`</h1>`)
		if d.Error != "" {
			o.flash(Flash{Kind: FlashError, Message: d.Error})
		}

		o.raw(`<form method="post" enctype="multipart/form-data"`, attr("action", action), classes(cardClass, "space-y-4"), `>`)
		o.field("title", "Title", "text", d.Input.Title, "")
		o.textarea("summary", "Summary", d.Input.Summary, 2)
		o.textarea("description", "Description", d.Input.Description, 8)
		o.textarea("attributes", "Details (one key: value per line)", FormatAttributes(d.Input.Attributes), 4)

		o.raw(`<label class="block text-sm font-medium">Image URL<input name="image_url" type="url"`,
			attr("value", d.Input.ImageURL), classes(inputClass, "mt-1"), `></label>`)
		if d.UploadEnabled {
			o.raw(`<label class="block text-sm font-medium">Or upload an image<input name="image" type="file" accept="image/*" class="mt-1 block text-sm"></label>`)
		}
		o.raw(`<label class="flex items-center gap-2 text-sm"><input name="is_featured" type="checkbox" value="true"`)
		if d.Input.IsFeatured {
			o.raw(` checked`)
		}
		o.raw(`>Featured</label><div class="flex gap-3"><button type="submit"`, classes(buttonClass), `>Save</button><a`,
			attr("href", d.Info.AdminPath()), ` class="px-4 py-2 text-sm text-gray-600">Cancel</a></div></form></section>`)
		return o.err
	})
}

func (o *out) textarea(name, label, value string, rows int) {
	o.raw(`<label class="block text-sm font-medium">`, label, `<textarea`, attr("name", name),
		attr("rows", itoa(int64(rows))), classes(inputClass, "mt-1"), `>`)
	o.text(value)
	o.raw(`</textarea></label>`)
}

// FormatAttributes renders attributes as sorted "key: value" lines.
func FormatAttributes(attrs map[string]string) string {
	keys := slices.Sorted(maps.Keys(attrs))
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+attrs[k])
	}
	return strings.Join(lines, "\n")
}

// PublicList is the read-only listing of one entity on the public site.
func PublicList(info models.EntityInfo, records []models.Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.raw(`<h1 class="text-3xl font-bold">`)
		o.text(info.Label)
		o.raw(`</h1>`)
		if len(records) == 0 {
			o.raw(`<p id="empty" class="mt-4 text-gray-500">Nothing has been published yet.</p>`)
			return o.err
		}
		o.raw(`<div class="mt-6 grid grid-cols-1 gap-6 md:grid-cols-2">`)
		for _, r := range records {
			o.card(r)
		}
		o.raw(`</div>`)
		return o.err
	})
}

func (o *out) card(r models.Record) {
	extra := ""
	if r.IsFeatured {
		extra = "border-blue-300"
	}
	o.raw(`<article`, attr("data-id", r.ID), classes(cardClass, extra), `>`)
	if r.ImageURL != "" {
		o.raw(`<img`, attr("src", r.ImageURL), attr("alt", r.Title), ` class="mb-4 h-48 w-full rounded object-cover">`)
	}
	o.raw(`<h2 class="text-xl font-semibold">`)
	o.text(r.Title)
	o.raw(`</h2>`)
	if r.Summary != "" {
		o.raw(`<p class="mt-2 text-gray-600">`)
		o.text(r.Summary)
		o.raw(`</p>`)
	}
	if len(r.Attributes) > 0 {
		o.raw(`<dl class="mt-3 grid grid-cols-2 gap-1 text-sm">`)
		for _, k := range slices.Sorted(maps.Keys(r.Attributes)) {
			o.raw(`<dt class="text-gray-500">`)
			o.text(k)
			o.raw(`</dt><dd>`)
			o.text(r.Attributes[k])
			o.raw(`</dd>`)
		}
		o.raw(`</dl>`)
	}
	o.raw(`</article>`)
}

// Home shows the featured records of every entity.
func Home(featured []models.Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.raw(`<section class="py-12 text-center"><h1 class="text-4xl font-bold">College of Information Technology and Computing Sciences</h1>`,
			`<p class="mt-3 text-gray-600">News, research and student life from the department.</p></section>`)
		if len(featured) == 0 {
			return o.err
		}
		o.raw(`<section id="featured" class="grid grid-cols-1 gap-6 md:grid-cols-3">`)
		for _, r := range featured {
			o.card(r)
		}
		o.raw(`</section>`)
		return o.err
	})
}

// Contact lists how to reach the department.
func Contact(items []models.ContactItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := newOut(ctx, w)
		o.raw(`<h1 class="text-3xl font-bold">Contact</h1>`,
			`<p class="mt-2 text-gray-600">Have questions? We're here to help.</p>`)
		o.raw(`<dl id="contact" class="mt-6 grid grid-cols-1 gap-4 md:grid-cols-2">`)
		for _, item := range items {
			o.raw(`<div`, classes(cardClass), `><dt class="text-sm font-semibold">`)
			o.text(item.Label)
			o.raw(`</dt><dd class="mt-1 text-sm text-gray-600">`)
			o.text(item.Value)
			o.raw(`</dd></div>`)
		}
		o.raw(`</dl>`)
		return o.err
	})
}
