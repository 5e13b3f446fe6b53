// Package layout encodes wizard identity and artifact kind in local paths.
//
// The on-disk convention is:
//
//	<root>/wizards/<ID> - <Name>/<Stem>.xml
//
// Only the numeric ID prefix of the folder is authoritative. The name suffix
// is cosmetic: it is written by FolderName and never read back for identity,
// so a wizard renamed remotely still resolves to its existing folder.
package layout

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/docwiz/wizsync/internal/wizard"
)

const (
	// WizardsDir is the directory under the sync root holding wizard folders.
	WizardsDir = "wizards"

	// Delimiter separates the wizard ID from its name in a folder name.
	Delimiter = " - "
)

var (
	// ErrStructureMismatch is matched by parse errors for paths that are not
	// shaped like wizards/<ID> - <Name>/<file>.
	ErrStructureMismatch = errors.New("path does not match wizard folder structure")

	// ErrUnrecognizedFile is matched by parse errors for files inside a wizard
	// folder that are not one of the artifact files.
	ErrUnrecognizedFile = errors.New("unrecognized file")
)

// Reason classifies why a path could not be parsed.
type Reason int

const (
	// StructureMismatch means the directory structure is wrong.
	StructureMismatch Reason = iota
	// UnrecognizedFile means the structure is right but the file is not an artifact.
	UnrecognizedFile
)

// String returns a human-readable representation of the reason.
func (r Reason) String() string {
	switch r {
	case StructureMismatch:
		return "structure mismatch"
	case UnrecognizedFile:
		return "unrecognized file"
	default:
		return "unknown"
	}
}

// ParseError is returned by Parse. It is an ignore signal, not a failure.
type ParseError struct {
	Path   string
	Reason Reason
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Reason, e.Path, e.Detail)
}

// Is lets callers match a ParseError with ErrStructureMismatch or
// ErrUnrecognizedFile.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrStructureMismatch:
		return e.Reason == StructureMismatch
	case ErrUnrecognizedFile:
		return e.Reason == UnrecognizedFile
	}
	return false
}

// Identity is what a path encodes: which wizard and which artifact.
type Identity struct {
	WizardID int
	Kind     wizard.ArtifactKind
}

// Parse extracts the wizard ID and artifact kind from an artifact path.
//
// The segment named "wizards" must sit exactly three positions before the
// file name. The folder segment is split on the first Delimiter and its left
// part must be a non-negative integer. The file name must have exactly one
// dot, a recognized stem and the xml extension.
func Parse(path string) (Identity, error) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) < 3 || parts[len(parts)-3] != WizardsDir {
		return Identity{}, &ParseError{Path: path, Reason: StructureMismatch,
			Detail: "directory not deep enough or unexpected directory name"}
	}

	id, err := ParseFolderName(parts[len(parts)-2])
	if err != nil {
		return Identity{}, &ParseError{Path: path, Reason: StructureMismatch, Detail: err.Error()}
	}

	file := parts[len(parts)-1]
	fileParts := strings.Split(file, ".")
	if len(fileParts) != 2 {
		return Identity{}, &ParseError{Path: path, Reason: UnrecognizedFile,
			Detail: fmt.Sprintf("file name %q must contain exactly one dot", file)}
	}

	stem, ext := fileParts[0], fileParts[1]
	kind, ok := wizard.KindForStem(stem)
	if !ok || ext != wizard.Extension {
		return Identity{}, &ParseError{Path: path, Reason: UnrecognizedFile,
			Detail: fmt.Sprintf("file %q with extension %q", stem, ext)}
	}

	return Identity{WizardID: id, Kind: kind}, nil
}

// FolderName returns the folder name for a wizard: {id} - {name}
// Path separators and control characters in name become '_', so the folder
// is always a single path segment.
func FolderName(id int, name string) string {
	return fmt.Sprintf("%d%s%s", id, Delimiter, cleanName(name))
}

func cleanName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
}

// ParseFolderName returns the wizard ID encoded in a folder name.
// The name suffix is ignored.
func ParseFolderName(folder string) (int, error) {
	prefix, _, found := strings.Cut(folder, Delimiter)
	if !found {
		return 0, fmt.Errorf("folder %q has no %q delimiter", folder, Delimiter)
	}

	id, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("folder %q does not start with a wizard ID: %w", folder, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("folder %q has a negative wizard ID", folder)
	}
	return id, nil
}

// Dir returns the directory holding all wizard folders under root.
func Dir(root string) string {
	return filepath.Join(root, WizardsDir)
}

// ArtifactPath returns the artifact path inside an existing wizard folder.
func ArtifactPath(folder string, kind wizard.ArtifactKind) string {
	return filepath.Join(folder, kind.FileName())
}

// Format is the inverse of Parse:
//
//	<root>/wizards/<ID> - <Name>/<Stem>.xml
func Format(root string, id int, name string, kind wizard.ArtifactKind) string {
	return ArtifactPath(filepath.Join(Dir(root), FolderName(id, name)), kind)
}
