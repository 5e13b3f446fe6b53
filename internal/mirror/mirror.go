// Package mirror is the local side of the sync: wizard folders and artifact
// files under <root>/wizards.
package mirror

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/docwiz/wizsync/internal/layout"
)

// Mirror reads and writes the local copy of every wizard.
type Mirror struct {
	fs   afero.Fs
	root string
}

// New creates a mirror rooted at root. Wizard folders live in root/wizards.
func New(fs afero.Fs, root string) *Mirror {
	return &Mirror{fs: fs, root: root}
}

// NewOS creates a mirror on the real filesystem.
func NewOS(root string) *Mirror {
	return New(afero.NewOsFs(), root)
}

// Root returns the sync root.
func (m *Mirror) Root() string {
	return m.root
}

// Dir returns the directory holding the wizard folders.
func (m *Mirror) Dir() string {
	return layout.Dir(m.root)
}

// EnsureDir creates the wizards directory if it does not exist.
func (m *Mirror) EnsureDir() error {
	if err := m.fs.MkdirAll(m.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create wizards directory: %w", err)
	}
	return nil
}

// Folder is an existing wizard folder.
type Folder struct {
	WizardID int
	Path     string
}

// Folders lists the wizard folders on disk, ordered by wizard ID. Entries
// whose names do not start with a wizard ID are skipped.
func (m *Mirror) Folders() ([]Folder, error) {
	entries, err := afero.ReadDir(m.fs, m.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read wizards directory: %w", err)
	}

	var folders []Folder
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := layout.ParseFolderName(entry.Name())
		if err != nil {
			continue
		}
		folders = append(folders, Folder{WizardID: id, Path: filepath.Join(m.Dir(), entry.Name())})
	}

	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].WizardID < folders[j].WizardID
	})
	return folders, nil
}

// EnsureFolder returns the folder for a wizard, creating it when absent.
// An existing folder with the same ID prefix is reused even if its name
// suffix differs, so remote renames do not fork the local copy. created
// reports whether a new directory was made.
func (m *Mirror) EnsureFolder(id int, name string) (path string, created bool, err error) {
	canonical := filepath.Join(m.Dir(), layout.FolderName(id, name))
	if ok, err := afero.DirExists(m.fs, canonical); err != nil {
		return "", false, fmt.Errorf("failed to stat %s: %w", canonical, err)
	} else if ok {
		return canonical, false, nil
	}

	folders, err := m.Folders()
	if err != nil {
		return "", false, err
	}
	for _, f := range folders {
		if f.WizardID == id {
			return f.Path, false, nil
		}
	}

	if err := m.fs.MkdirAll(canonical, 0755); err != nil {
		return "", false, fmt.Errorf("failed to create wizard folder %s: %w", canonical, err)
	}
	return canonical, true, nil
}

// ReadFile returns the file content. ok is false when the file does not exist.
func (m *Mirror) ReadFile(path string) (content []byte, ok bool, err error) {
	content, err = afero.ReadFile(m.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return content, true, nil
}

// WriteFile replaces the file content. The content is written to a temporary
// file in the same directory and renamed over the target, so readers never
// observe a partial write.
func (m *Mirror) WriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(m.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = m.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = m.fs.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := m.fs.Chmod(tmpName, 0644); err != nil {
		_ = m.fs.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := m.fs.Rename(tmpName, path); err != nil {
		_ = m.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ContentDiffers reports whether the file is absent or its bytes differ from
// reference.
func (m *Mirror) ContentDiffers(path string, reference []byte) (bool, error) {
	content, ok, err := m.ReadFile(path)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return !bytes.Equal(content, reference), nil
}
