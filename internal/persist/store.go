// Package persist keeps per-user workspaces (tab bar and UI settings) as one
// JSON file per user under the state directory, and provides the atomic file
// helpers the other on-disk stores share.
package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

const workspaceExt = ".json"

// TabSnapshot captures a tab for persistence.
type TabSnapshot struct {
	ID       schema.TabID `json:"id"`
	Title    string       `json:"title"`
	Path     string       `json:"path"`
	Closable bool         `json:"closable"`
}

// UserSnapshot captures a user's workspace: tab bar and UI settings.
type UserSnapshot struct {
	Tabs     []TabSnapshot      `json:"tabs"`
	Active   schema.TabID       `json:"active,omitempty"`
	Settings *schema.UISettings `json:"settings,omitempty"`
}

// Store reads and writes workspace files.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore opens the workspace directory, creating it if needed.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger is NewStore with a logger for load and save events.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Store{dir: dir, log: logger.With("state_dir", dir)}, nil
}

// Load returns the saved workspace of userID. ok is false when none exists.
func (s *Store) Load(userID schema.UserID) (UserSnapshot, bool, error) {
	var snapshot UserSnapshot
	ok, err := ReadJSON(s.pathForUser(userID), &snapshot)
	switch {
	case err != nil:
		s.log.Warn("state load failed", "user", userID, "err", err)
		return UserSnapshot{}, false, err
	case !ok:
		s.log.Debug("state load miss", "user", userID)
		return UserSnapshot{}, false, nil
	}
	s.log.Debug("state load ok", "user", userID, "tabs", len(snapshot.Tabs))
	return snapshot, true, nil
}

// Save replaces the workspace of userID.
func (s *Store) Save(userID schema.UserID, snapshot UserSnapshot) error {
	if err := WriteJSON(s.pathForUser(userID), snapshot); err != nil {
		s.log.Warn("state save failed", "user", userID, "err", err)
		return err
	}
	s.log.Trace("state save ok", "user", userID, "tabs", len(snapshot.Tabs))
	return nil
}

// Delete removes the workspace of userID and reports whether one existed.
func (s *Store) Delete(userID schema.UserID) (bool, error) {
	err := os.Remove(s.pathForUser(userID))
	switch {
	case err == nil:
		s.log.Debug("state deleted", "user", userID)
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		s.log.Warn("state delete failed", "user", userID, "err", err)
		return false, err
	}
}

// Users lists the file names of the saved workspaces, sorted. Names are the
// sanitized user ids, which equal the ids for the numeric ids the user store
// hands out.
func (s *Store) Users() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != workspaceExt {
			continue
		}
		out = append(out, strings.TrimSuffix(name, workspaceExt))
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) pathForUser(userID schema.UserID) string {
	return filepath.Join(s.dir, fileName(string(userID))+workspaceExt)
}

// fileName maps an id onto [A-Za-z0-9_-]; anything else becomes '_'.
func fileName(id string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	if name == "" {
		return "_"
	}
	return name
}
