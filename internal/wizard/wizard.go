// Package wizard defines the remote wizard entity and the two artifacts each
// wizard owns.
package wizard

import "fmt"

// Wizard is a remotely managed configurable unit. The remote service assigns
// the ID and is the only owner; anything held locally is a weak reference
// that may go stale at any time.
type Wizard struct {
	ID          int
	Name        string
	Description string
	Active      bool
}

// String returns a human-readable representation of the wizard.
func (w Wizard) String() string {
	state := "inactive"
	if w.Active {
		state = "active"
	}
	return fmt.Sprintf("Wizard[%d]: '%s' (%s)", w.ID, w.Name, state)
}

// ArtifactKind identifies one of the two documents a wizard owns.
type ArtifactKind int

const (
	// Configuration is the wizard configuration document.
	Configuration ArtifactKind = iota
	// EventTemplate is the event template document.
	EventTemplate
)

// Extension is the file extension shared by both artifact files.
const Extension = "xml"

// Kinds lists every artifact kind in the order they are synchronized.
var Kinds = []ArtifactKind{Configuration, EventTemplate}

// String returns a human-readable representation of the kind.
func (k ArtifactKind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case EventTemplate:
		return "event template"
	default:
		return "unknown"
	}
}

// Stem returns the file name without extension used for the kind on disk.
// The stems are part of the on-disk contract and must not change.
func (k ArtifactKind) Stem() string {
	switch k {
	case Configuration:
		return "WizardConfiguration"
	case EventTemplate:
		return "EventTemplate"
	default:
		return ""
	}
}

// FileName returns the on-disk file name for the kind: {stem}.xml
func (k ArtifactKind) FileName() string {
	return k.Stem() + "." + Extension
}

// Resource returns the API path segment under /wizards/{id}/ for the kind.
func (k ArtifactKind) Resource() string {
	switch k {
	case Configuration:
		return "configuration"
	case EventTemplate:
		return "event"
	default:
		return ""
	}
}

// Validated reports whether content of this kind must pass remote validation
// before it is uploaded.
func (k ArtifactKind) Validated() bool {
	return k == Configuration
}

// KindForStem returns the kind whose stem matches exactly (case-sensitive).
func KindForStem(stem string) (ArtifactKind, bool) {
	for _, k := range Kinds {
		if k.Stem() == stem {
			return k, true
		}
	}
	return 0, false
}
