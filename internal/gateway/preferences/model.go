// Copyright (c) 2025 Justin Cranford

// Package preferences implements the gateway's per-user preferences
// document, per spec.md §3/§4.6.
package preferences

// Document is the v1 per-user preferences document. Every field is a
// strict whitelist entry; Merge silently drops anything not named here,
// per spec.md §3's "unknown or ill-typed fields are silently dropped".
type Document struct {
	Version int `json:"version"`

	Theme            string   `json:"theme"`
	DefaultModel     string   `json:"defaultModel"`
	NotificationsOn  bool     `json:"notificationsOn"`
	AutoSaveInterval int      `json:"autoSaveInterval"` // seconds; values outside [5,3600] are dropped
	PinnedProjectIDs []string `json:"pinnedProjectIds"`
}

// themeValues is the enum of accepted Theme values.
var themeValues = map[string]bool{
	"light":  true,
	"dark":   true,
	"system": true,
}

func defaults() *Document {
	return &Document{
		Version:          1,
		Theme:            "system",
		NotificationsOn:  true,
		AutoSaveInterval: 30,
	}
}
