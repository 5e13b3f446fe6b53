// Package dispatch turns file system change events into validated uploads.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/docwiz/wizsync/internal/layout"
	"github.com/docwiz/wizsync/internal/report"
	"github.com/docwiz/wizsync/internal/watch"
	"github.com/docwiz/wizsync/internal/wizard"
)

// Store is the part of the remote session the dispatcher uploads through.
type Store interface {
	Wizard(ctx context.Context, id int) (*wizard.Wizard, error)
	ValidateConfiguration(ctx context.Context, content []byte) ([]string, error)
	WriteArtifact(ctx context.Context, id int, kind wizard.ArtifactKind, content []byte) (bool, error)
}

// Files reads local artifact files.
type Files interface {
	ReadFile(path string) ([]byte, bool, error)
}

// Outcome is what happened to one event.
type Outcome int

const (
	// Ignored means the event did not name an artifact file.
	Ignored Outcome = iota
	// Uploaded means new content was written to the remote store.
	Uploaded
	// Unchanged means the content matched the last known remote content.
	Unchanged
	// Rejected means the configuration failed remote validation.
	Rejected
	// Gone means the wizard no longer exists remotely.
	Gone
	// Failed means a remote or local error stopped the upload.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Uploaded:
		return "uploaded"
	case Unchanged:
		return "unchanged"
	case Rejected:
		return "rejected"
	case Gone:
		return "gone"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Dispatcher handles change events one at a time.
type Dispatcher struct {
	store    Store
	files    Files
	reporter report.Reporter
}

// New creates a dispatcher. A nil reporter discards events.
func New(store Store, files Files, reporter report.Reporter) *Dispatcher {
	if reporter == nil {
		reporter = report.Discard
	}
	return &Dispatcher{store: store, files: files, reporter: reporter}
}

// Run handles events until the channel is closed or ctx is done. Each event is
// handled to completion before the next one is received.
func (d *Dispatcher) Run(ctx context.Context, events <-chan watch.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.Handle(ctx, ev)
		}
	}
}

// Handle classifies one event and uploads the artifact it names. Errors are
// reported, never returned. Remote calls are not cancelled with ctx so an
// upload that has started is allowed to finish.
func (d *Dispatcher) Handle(ctx context.Context, ev watch.Event) Outcome {
	ctx = context.WithoutCancel(ctx)

	if ev.IsDir {
		d.reporter.Report(report.New(report.LevelInfo, report.ActionIgnored,
			fmt.Sprintf("Change in directory %s", ev.Path)).AtPath(ev.Path))
		return Ignored
	}

	art, err := layout.Parse(ev.Path)
	if err != nil {
		d.reporter.Report(report.New(report.LevelInfo, report.ActionIgnored, ignoreReason(err)).AtPath(ev.Path).WithErr(err))
		return Ignored
	}

	event := func(level report.Level, action report.Action, msg string) report.Event {
		return report.New(level, action, msg).ForArtifact(art.WizardID, art.Kind, ev.Path)
	}

	content, ok, err := d.files.ReadFile(ev.Path)
	if err != nil {
		d.reporter.Report(event(report.LevelError, report.ActionFailed, "Failed to read local file").WithErr(err))
		return Failed
	}
	if !ok {
		d.reporter.Report(event(report.LevelWarn, report.ActionIgnored,
			fmt.Sprintf("File %s disappeared before it could be read", ev.Path)))
		return Ignored
	}

	w, err := d.store.Wizard(ctx, art.WizardID)
	if err != nil {
		d.reporter.Report(event(report.LevelError, report.ActionFailed,
			fmt.Sprintf("Failed to fetch wizard %d", art.WizardID)).WithErr(err))
		return Failed
	}
	if w == nil {
		d.reporter.Report(event(report.LevelInfo, report.ActionEntityGone,
			fmt.Sprintf("The wizard with ID %d does not exist anymore", art.WizardID)))
		return Gone
	}

	if art.Kind.Validated() {
		violations, err := d.store.ValidateConfiguration(ctx, content)
		if err != nil {
			d.reporter.Report(event(report.LevelError, report.ActionFailed,
				fmt.Sprintf("Failed to validate %s for wizard '%s'", art.Kind, w.Name)).WithErr(err))
			return Failed
		}
		if len(violations) > 0 {
			for _, v := range violations {
				d.reporter.Report(event(report.LevelError, report.ActionRejected, v))
			}
			return Rejected
		}
	}

	written, err := d.store.WriteArtifact(ctx, art.WizardID, art.Kind, content)
	if err != nil {
		d.reporter.Report(event(report.LevelError, report.ActionFailed,
			fmt.Sprintf("Failed to upload %s for wizard '%s'", art.Kind, w.Name)).WithErr(err))
		return Failed
	}
	if !written {
		d.reporter.Report(event(report.LevelInfo, report.ActionUnchanged,
			fmt.Sprintf("The %s for wizard '%s' is already up to date", art.Kind, w.Name)))
		return Unchanged
	}

	d.reporter.Report(event(report.LevelSuccess, report.ActionUploaded,
		fmt.Sprintf("Uploaded %s xml for wizard '%s'", art.Kind, w.Name)))
	return Uploaded
}

func ignoreReason(err error) string {
	switch {
	case errors.Is(err, layout.ErrStructureMismatch):
		return "Not an artifact path: unexpected directory structure"
	case errors.Is(err, layout.ErrUnrecognizedFile):
		return "Not an artifact path: unrecognized file"
	default:
		return "Not an artifact path"
	}
}
