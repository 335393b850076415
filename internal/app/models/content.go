package models

import "time"

// Entity names one of the managed content tables.
type Entity string

const (
	EntityAnnouncements Entity = "announcements"
	EntityGallery       Entity = "gallery"
	EntityResearch      Entity = "research"
	EntityOrganizations Entity = "organizations"
	EntityExtensions    Entity = "extensions"
)

// EntityInfo describes how an entity is presented and routed.
type EntityInfo struct {
	Entity     Entity
	Label      string
	Singular   string
	PublicPath string
}

func (e EntityInfo) AdminPath() string {
	return "/admin/" + string(e.Entity)
}

var Entities = []EntityInfo{
	{Entity: EntityAnnouncements, Label: "Announcements", Singular: "announcement", PublicPath: "/announcements"},
	{Entity: EntityGallery, Label: "Gallery", Singular: "gallery item", PublicPath: "/gallery"},
	{Entity: EntityResearch, Label: "Research", Singular: "research entry", PublicPath: "/research"},
	{Entity: EntityOrganizations, Label: "Organizations", Singular: "organization", PublicPath: "/organizations"},
	{Entity: EntityExtensions, Label: "Extensions", Singular: "extension activity", PublicPath: "/extension"},
}

// LookupEntity returns the descriptor for e.
func LookupEntity(e Entity) (EntityInfo, bool) {
	for _, info := range Entities {
		if info.Entity == e {
			return info, true
		}
	}
	return EntityInfo{}, false
}

// Record is the generic content row shared by every entity.
type Record struct {
	ID          string
	Title       string
	Summary     string
	Description string
	ImageURL    string
	IsFeatured  bool
	Attributes  map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecordInput carries the writable fields of a Record.
type RecordInput struct {
	Title       string
	Summary     string
	Description string
	ImageURL    string
	IsFeatured  bool
	Attributes  map[string]string
}

// DashboardCounts holds the row count of each entity.
type DashboardCounts map[Entity]int64
