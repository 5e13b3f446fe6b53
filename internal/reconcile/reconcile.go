// Package reconcile performs the initial full sync between the remote wizards
// and the local mirror.
package reconcile

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docwiz/wizsync/internal/layout"
	"github.com/docwiz/wizsync/internal/report"
	"github.com/docwiz/wizsync/internal/wizard"
)

// Store is the part of the remote session the reconciler reads from.
type Store interface {
	ListWizards(ctx context.Context) ([]wizard.Wizard, error)
	ReadArtifact(ctx context.Context, id int, kind wizard.ArtifactKind) ([]byte, error)
}

// Mirror is the part of the local mirror the reconciler writes to.
type Mirror interface {
	EnsureFolder(id int, name string) (string, bool, error)
	ReadFile(path string) ([]byte, bool, error)
	WriteFile(path string, content []byte) error
}

// Summary counts what a pass did.
type Summary struct {
	Wizards     int
	Discovered  int
	Downloaded  int
	InSync      int
	Conflicts   int
	Overwritten int
	KeptLocal   int
	Failed      int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d wizards, %d new, %d downloaded, %d in sync, %d conflicts (%d overwritten, %d kept), %d failed",
		s.Wizards, s.Discovered, s.Downloaded, s.InSync, s.Conflicts, s.Overwritten, s.KeptLocal, s.Failed)
}

// Reconciler brings the local mirror up to date with the remote store.
type Reconciler struct {
	store    Store
	mirror   Mirror
	resolver Resolver
	reporter report.Reporter
}

// New creates a reconciler. A nil resolver keeps local files on conflict and a
// nil reporter discards events.
func New(store Store, mirror Mirror, resolver Resolver, reporter report.Reporter) *Reconciler {
	if resolver == nil {
		resolver = Always(KeepLocal)
	}
	if reporter == nil {
		reporter = report.Discard
	}
	return &Reconciler{
		store:    store,
		mirror:   mirror,
		resolver: resolver,
		reporter: reporter,
	}
}

// Run performs one full pass. Wizards are processed in the order the store
// returns them. A failure on one wizard or artifact is reported and counted
// but never stops the pass; only a failure to list wizards is returned.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	wizards, err := r.store.ListWizards(ctx)
	if err != nil {
		r.reporter.Report(report.New(report.LevelError, report.ActionFailed, "Failed to list wizards").WithErr(err))
		return sum, fmt.Errorf("failed to list wizards: %w", err)
	}

	for _, w := range wizards {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Wizards++
		r.syncWizard(ctx, w, &sum)
	}

	r.reporter.Report(report.New(report.LevelSuccess, report.ActionSyncComplete, "Synchronization done: "+sum.String()))
	return sum, nil
}

func (r *Reconciler) syncWizard(ctx context.Context, w wizard.Wizard, sum *Summary) {
	folder, created, err := r.mirror.EnsureFolder(w.ID, w.Name)
	if err != nil {
		sum.Failed++
		r.reporter.Report(report.New(report.LevelError, report.ActionFailed,
			fmt.Sprintf("Failed to prepare folder for wizard '%s'", w.Name)).ForWizard(w.ID).WithErr(err))
		return
	}
	if created {
		sum.Discovered++
		r.reporter.Report(report.New(report.LevelInfo, report.ActionDiscovered,
			fmt.Sprintf("New wizard found: '%s'", w.Name)).ForWizard(w.ID).AtPath(folder))
	}

	for _, kind := range wizard.Kinds {
		if err := r.syncArtifact(ctx, w, kind, layout.ArtifactPath(folder, kind), sum); err != nil {
			sum.Failed++
			r.reporter.Report(report.New(report.LevelError, report.ActionFailed,
				fmt.Sprintf("Failed to sync %s for wizard '%s'", kind, w.Name)).
				ForArtifact(w.ID, kind, layout.ArtifactPath(folder, kind)).WithErr(err))
		}
	}
}

func (r *Reconciler) syncArtifact(ctx context.Context, w wizard.Wizard, kind wizard.ArtifactKind, path string, sum *Summary) error {
	remote, err := r.store.ReadArtifact(ctx, w.ID, kind)
	if err != nil {
		return fmt.Errorf("failed to read remote %s: %w", kind, err)
	}

	local, exists, err := r.mirror.ReadFile(path)
	if err != nil {
		return err
	}

	ev := func(level report.Level, action report.Action, msg string) report.Event {
		return report.New(level, action, msg).ForArtifact(w.ID, kind, path)
	}

	if !exists {
		if err := r.mirror.WriteFile(path, remote); err != nil {
			return err
		}
		sum.Downloaded++
		r.reporter.Report(ev(report.LevelSuccess, report.ActionDownloaded,
			fmt.Sprintf("Downloading file '%s' for wizard '%s'", path, w.Name)))
		return nil
	}

	if bytes.Equal(local, remote) {
		sum.InSync++
		r.reporter.Report(ev(report.LevelInfo, report.ActionInSync, fmt.Sprintf("File '%s' is in sync", path)))
		return nil
	}

	sum.Conflicts++
	r.reporter.Report(ev(report.LevelWarn, report.ActionConflict,
		fmt.Sprintf("The file %s has been modified locally", path)))

	decision, err := r.resolver.Resolve(ctx, Conflict{
		Wizard: w,
		Kind:   kind,
		Path:   path,
		Local:  local,
		Remote: remote,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	switch decision {
	case OverwriteLocal:
		if err := r.mirror.WriteFile(path, remote); err != nil {
			return err
		}
		sum.Overwritten++
		r.reporter.Report(ev(report.LevelSuccess, report.ActionOverwritten,
			fmt.Sprintf("Overwrote '%s' with the remote copy", path)))
	default:
		sum.KeptLocal++
		r.reporter.Report(ev(report.LevelWarn, report.ActionKeptLocal,
			fmt.Sprintf("Ignoring. File '%s' not in sync", path)))
	}
	return nil
}
