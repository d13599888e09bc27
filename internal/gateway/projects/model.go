// Copyright (c) 2025 Justin Cranford

// Package projects implements the gateway's per-user project records and
// file metadata, per spec.md §3/§4.6.
package projects

import "time"

// Project is a per-user project record.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	SessionKeys []string  `json:"sessionKeys"`
	Files       []File    `json:"files"`
	CreatedAt   time.Time `json:"createdAt"`
}

// File is metadata for one file attached to a project. The file's bytes are
// stored separately on disk; this struct never carries payload data.
type File struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	SessionKey string    `json:"sessionKey"`
	AddedAt    time.Time `json:"addedAt"`
}

// document is the on-disk shape of projects.json.
type document struct {
	Version  int        `json:"version"`
	Projects []*Project `json:"projects"`
}
