package app

import (
	"os"
	"path/filepath"
)

// Paths holds the resolved filesystem paths for the .shapegrep/ project directory.
type Paths struct {
	Root string // .shapegrep/
	DB   string // .shapegrep/store.db
}

// NewPaths constructs all resolved paths from a project root directory.
// dbOverride, when set, replaces the default database location.
func NewPaths(projectRoot, dbOverride string) *Paths {
	root := filepath.Join(projectRoot, ".shapegrep")
	db := filepath.Join(root, "store.db")
	if dbOverride != "" {
		db = dbOverride
	}
	return &Paths{Root: root, DB: db}
}

// EnsureDirs creates the directories the database lives in. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, filepath.Dir(p.DB)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}
