// Copyright (c) 2025 Justin Cranford

package preferences

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
)

// Store loads and persists per-user preferences documents under
// <stateDir>/user-preferences/<sanitised-username>.json, per spec.md §3.
type Store struct {
	mu       sync.Mutex
	stateDir string
}

// New constructs a Store rooted at stateDir.
func New(stateDir string) *Store {
	return &Store{stateDir: stateDir}
}

func (s *Store) path(username string) string {
	return filepath.Join(s.stateDir, "user-preferences", crypto.FoldUsername(username)+".json")
}

// Get returns username's preferences document, or the v1 defaults if none
// has been saved yet.
func (s *Store) Get(username string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(username))
	if err != nil {
		if os.IsNotExist(err) {
			return defaults(), nil
		}
		return nil, gatewayerr.Wrap(gatewayerr.KindIO, "read preferences", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "parse preferences", err)
	}
	return &doc, nil
}

// Merge applies patch on top of username's current document: only known,
// correctly-typed fields from patch are applied; everything else (fields
// not in Document, or a recognized field holding an invalid value for its
// type/enum/range) is silently dropped, per spec.md §3. The merged,
// validated document is persisted and returned.
func (s *Store) Merge(username string, patch map[string]any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.getLocked(username)
	if err != nil {
		return nil, err
	}
	applyPatch(doc, patch)
	doc.Version = 1

	if err := s.persistLocked(username, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) getLocked(username string) (*Document, error) {
	raw, err := os.ReadFile(s.path(username))
	if err != nil {
		if os.IsNotExist(err) {
			return defaults(), nil
		}
		return nil, gatewayerr.Wrap(gatewayerr.KindIO, "read preferences", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "parse preferences", err)
	}
	return &doc, nil
}

func (s *Store) persistLocked(username string, doc *Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "marshal preferences", err)
	}
	path := s.path(username)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "create preferences dir", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "write preferences", err)
	}
	return nil
}

// applyPatch whitelists and type/range-validates each recognized key,
// dropping anything that doesn't match rather than erroring, per spec.md §3.
func applyPatch(doc *Document, patch map[string]any) {
	if v, ok := patch["theme"].(string); ok && themeValues[v] {
		doc.Theme = v
	}
	if v, ok := patch["defaultModel"].(string); ok {
		doc.DefaultModel = v
	}
	if v, ok := patch["notificationsOn"].(bool); ok {
		doc.NotificationsOn = v
	}
	if v, ok := patch["autoSaveInterval"].(float64); ok { // JSON numbers decode as float64
		n := int(v)
		if n >= 5 && n <= 3600 {
			doc.AutoSaveInterval = n
		}
	}
	if v, ok := patch["pinnedProjectIds"].([]any); ok {
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if id, ok := item.(string); ok {
				ids = append(ids, id)
			}
		}
		doc.PinnedProjectIDs = ids
	}
}
