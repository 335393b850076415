package models

type NavItem struct {
	Name string
	URL  string
	Icon string
}

type Navigation struct {
	Items []NavItem
}

// AdminNav is the sidebar of the admin console.
var AdminNav = Navigation{
	Items: []NavItem{
		{Name: "Dashboard", URL: "/admin", Icon: "layout-dashboard"},
		{Name: "Announcements", URL: "/admin/announcements", Icon: "megaphone"},
		{Name: "Gallery", URL: "/admin/gallery", Icon: "image"},
		{Name: "Research", URL: "/admin/research", Icon: "book-open"},
		{Name: "Organizations", URL: "/admin/organizations", Icon: "users"},
		{Name: "Extensions", URL: "/admin/extensions", Icon: "heart-handshake"},
		{Name: "Users", URL: "/admin/users", Icon: "shield"},
	},
}

// PublicNav is the header of the public site.
var PublicNav = Navigation{
	Items: []NavItem{
		{Name: "Home", URL: "/"},
		{Name: "Announcements", URL: "/announcements"},
		{Name: "Gallery", URL: "/gallery"},
		{Name: "Research", URL: "/research"},
		{Name: "Organizations", URL: "/organizations"},
		{Name: "Extension", URL: "/extension"},
		{Name: "Contact", URL: "/contact"},
	},
}

// ContactItem is one line of the department's contact card.
type ContactItem struct {
	Label string
	Value string
}

var ContactDetails = []ContactItem{
	{Label: "Address", Value: "CITCS Building, Main Campus, University Avenue"},
	{Label: "Phone", Value: "(+63) 912 345 6789"},
	{Label: "Email", Value: "citcs.hub@university.edu"},
	{Label: "Office Hours", Value: "Mon-Fri, 8:00 AM - 5:00 PM"},
}
