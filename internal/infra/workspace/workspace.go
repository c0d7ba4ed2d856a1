package workspace

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// Manager creates and destroys per-session scratch directories under the
// system temp root.
type Manager struct {
	prefix string
}

func NewManager() *Manager {
	return &Manager{prefix: "repoguard-scan-"}
}

// Create makes a fresh collision-resistant temp directory.
func (m *Manager) Create() (string, error) {
	dir, err := os.MkdirTemp("", m.prefix)
	if err != nil {
		return "", err
	}
	return dir, nil
}

// Destroy removes the workspace recursively. Git clones leave read-only
// object files behind on some platforms, so a permission failure relaxes
// modes on the whole tree and retries once. A terminal failure is logged
// and swallowed: cleanup must never fail the scan. Safe to call twice.
func (m *Manager) Destroy(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return
	}

	err := os.RemoveAll(path)
	if err == nil {
		return
	}
	if errors.Is(err, fs.ErrPermission) {
		makeWritable(path)
		err = os.RemoveAll(path)
	}
	if err != nil {
		log.Printf("workspace cleanup failed path=%s err=%v", path, err)
	}
}

// makeWritable walks the tree forcing owner-write on every entry so that
// RemoveAll can proceed. Errors during the walk are ignored; the retry
// will surface whatever still blocks removal.
func makeWritable(root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		_ = os.Chmod(p, info.Mode().Perm()|0o200)
		return nil
	})
}
