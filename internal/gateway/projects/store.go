// Copyright (c) 2025 Justin Cranford

package projects

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/CohesiumAI/openclaw-sub001/internal/gateway/crypto"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/gatewayerr"
	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// idPattern is the project/file ID shape from spec.md §3.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Store loads and persists per-user project records under
// <stateDir>/user-projects/<sanitised-username>/, per spec.md §3.
type Store struct {
	mu       sync.Mutex
	stateDir string
}

// New constructs a Store rooted at stateDir.
func New(stateDir string) *Store {
	return &Store{stateDir: stateDir}
}

func (s *Store) userDir(username string) string {
	return filepath.Join(s.stateDir, "user-projects", crypto.FoldUsername(username))
}

func (s *Store) projectsPath(username string) string {
	return filepath.Join(s.userDir(username), "projects.json")
}

func (s *Store) filePath(username, projectID, fileID string) string {
	return filepath.Join(s.userDir(username), "files", projectID, fileID)
}

// List returns every project belonging to username.
func (s *Store) List(username string) ([]*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked(username)
	if err != nil {
		return nil, err
	}
	return doc.Projects, nil
}

// Create adds a new project for username. Fails with KindInvalidInput if id
// doesn't match the required pattern, and KindConflict if it already
// exists. Enforces the ≤100-projects-per-user cap from spec.md §3.
func (s *Store) Create(username string, p *Project) error {
	if !idPattern.MatchString(p.ID) {
		return gatewayerr.New(gatewayerr.KindInvalidInput, "invalid project id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(username)
	if err != nil {
		return err
	}
	for _, existing := range doc.Projects {
		if existing.ID == p.ID {
			return gatewayerr.New(gatewayerr.KindConflict, "project already exists")
		}
	}
	if len(doc.Projects) >= magic.MaxProjectsPerUser {
		return gatewayerr.New(gatewayerr.KindResourceLimit, "project limit reached")
	}

	clone := *p
	clone.CreatedAt = time.Now().UTC()
	clone.Files = nil
	doc.Projects = append(doc.Projects, &clone)
	return s.persistLocked(username, doc)
}

// Delete removes a project and its on-disk file payloads.
func (s *Store) Delete(username, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(username)
	if err != nil {
		return err
	}
	idx := indexOf(doc.Projects, projectID)
	if idx < 0 {
		return gatewayerr.New(gatewayerr.KindNotFound, "project not found")
	}
	doc.Projects = append(doc.Projects[:idx], doc.Projects[idx+1:]...)
	if err := s.persistLocked(username, doc); err != nil {
		return err
	}
	_ = os.RemoveAll(filepath.Join(s.userDir(username), "files", projectID))
	return nil
}

// AddFile attaches payload to projectID under username, enforcing the
// ≤500-files-per-project and ≤35MB-per-file caps from spec.md §3.
func (s *Store) AddFile(username, projectID string, meta File, payload []byte) error {
	if !idPattern.MatchString(meta.ID) {
		return gatewayerr.New(gatewayerr.KindInvalidInput, "invalid file id")
	}
	if int64(len(payload)) > magic.MaxFilePayloadBytes {
		return gatewayerr.New(gatewayerr.KindInvalidInput, "file payload too large")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(username)
	if err != nil {
		return err
	}
	idx := indexOf(doc.Projects, projectID)
	if idx < 0 {
		return gatewayerr.New(gatewayerr.KindNotFound, "project not found")
	}
	proj := doc.Projects[idx]
	if len(proj.Files) >= magic.MaxFilesPerProject {
		return gatewayerr.New(gatewayerr.KindResourceLimit, "file limit reached")
	}
	for _, f := range proj.Files {
		if f.ID == meta.ID {
			return gatewayerr.New(gatewayerr.KindConflict, "file already exists")
		}
	}

	meta.SizeBytes = int64(len(payload))
	meta.AddedAt = time.Now().UTC()
	proj.Files = append(proj.Files, meta)

	path := s.filePath(username, projectID, meta.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "create project files dir", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "write project file", err)
	}
	return s.persistLocked(username, doc)
}

// RemoveFile removes fileID's metadata entry from projectID and deletes its
// on-disk payload.
func (s *Store) RemoveFile(username, projectID, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(username)
	if err != nil {
		return err
	}
	idx := indexOf(doc.Projects, projectID)
	if idx < 0 {
		return gatewayerr.New(gatewayerr.KindNotFound, "project not found")
	}
	proj := doc.Projects[idx]

	fileIdx := -1
	for i, f := range proj.Files {
		if f.ID == fileID {
			fileIdx = i
			break
		}
	}
	if fileIdx < 0 {
		return gatewayerr.New(gatewayerr.KindNotFound, "file not found")
	}
	proj.Files = append(proj.Files[:fileIdx], proj.Files[fileIdx+1:]...)

	if err := s.persistLocked(username, doc); err != nil {
		return err
	}
	_ = os.Remove(s.filePath(username, projectID, fileID))
	return nil
}

// ReadFile returns the payload bytes for a previously added file.
func (s *Store) ReadFile(username, projectID, fileID string) ([]byte, error) {
	raw, err := os.ReadFile(s.filePath(username, projectID, fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gatewayerr.New(gatewayerr.KindNotFound, "file not found")
		}
		return nil, gatewayerr.Wrap(gatewayerr.KindIO, "read project file", err)
	}
	return raw, nil
}

func indexOf(projects []*Project, id string) int {
	for i, p := range projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) loadLocked(username string) (*document, error) {
	raw, err := os.ReadFile(s.projectsPath(username))
	if err != nil {
		if os.IsNotExist(err) {
			return &document{Version: 1}, nil
		}
		return nil, gatewayerr.Wrap(gatewayerr.KindIO, "read projects", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.KindCorrupt, "parse projects", err)
	}
	return &doc, nil
}

func (s *Store) persistLocked(username string, doc *document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "marshal projects", err)
	}
	path := s.projectsPath(username)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "create projects dir", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return gatewayerr.Wrap(gatewayerr.KindIO, "write projects", err)
	}
	return nil
}
