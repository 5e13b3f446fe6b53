package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docwiz/wizsync/internal/layout"
	"github.com/docwiz/wizsync/internal/report"
	"github.com/docwiz/wizsync/internal/watch"
	"github.com/docwiz/wizsync/internal/wizard"
)

type write struct {
	id      int
	kind    wizard.ArtifactKind
	content string
}

type fakeStore struct {
	wizards     map[int]wizard.Wizard
	violations  []string
	wizardErr   error
	validateErr error
	writeErr    error
	unchanged   bool
	validations int
	writes      []write
	ctxErrs     []error
}

func (s *fakeStore) Wizard(ctx context.Context, id int) (*wizard.Wizard, error) {
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if s.wizardErr != nil {
		return nil, s.wizardErr
	}
	w, ok := s.wizards[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *fakeStore) ValidateConfiguration(_ context.Context, _ []byte) ([]string, error) {
	s.validations++
	return s.violations, s.validateErr
}

func (s *fakeStore) WriteArtifact(ctx context.Context, id int, kind wizard.ArtifactKind, content []byte) (bool, error) {
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if s.writeErr != nil {
		return false, s.writeErr
	}
	if s.unchanged {
		return false, nil
	}
	s.writes = append(s.writes, write{id: id, kind: kind, content: string(content)})
	return true, nil
}

type memFiles map[string][]byte

func (m memFiles) ReadFile(path string) ([]byte, bool, error) {
	b, ok := m[path]
	return b, ok, nil
}

type errFiles struct{}

func (errFiles) ReadFile(string) ([]byte, bool, error) {
	return nil, false, errors.New("permission denied")
}

const root = "/sync"

var (
	acme    = wizard.Wizard{ID: 42, Name: "Acme", Active: true}
	cfgPath = layout.Format(root, 42, "Acme", wizard.Configuration)
	evtPath = layout.Format(root, 42, "Acme", wizard.EventTemplate)
)

func setup(store *fakeStore, files Files) (*Dispatcher, *report.Recorder) {
	rec := &report.Recorder{}
	return New(store, files, rec), rec
}

func acmeStore() *fakeStore {
	return &fakeStore{wizards: map[int]wizard.Wizard{42: acme}}
}

func TestEventTemplateModified(t *testing.T) {
	store := acmeStore()
	d, rec := setup(store, memFiles{evtPath: []byte("<evt>new</evt>")})

	out := d.Handle(context.Background(), watch.Event{Path: evtPath, Op: watch.Modified})

	assert.Equal(t, Uploaded, out)
	require.Len(t, store.writes, 1)
	assert.Equal(t, write{id: 42, kind: wizard.EventTemplate, content: "<evt>new</evt>"}, store.writes[0])
	assert.Zero(t, store.validations, "event templates are not validated")

	uploaded := rec.Filter(report.ActionUploaded)
	require.Len(t, uploaded, 1)
	assert.Equal(t, report.LevelSuccess, uploaded[0].Level)
	assert.Equal(t, 42, uploaded[0].WizardID)
	assert.Equal(t, evtPath, uploaded[0].Path)
}

func TestConfigurationValidatedThenWritten(t *testing.T) {
	store := acmeStore()
	d, _ := setup(store, memFiles{cfgPath: []byte("<cfg/>")})

	out := d.Handle(context.Background(), watch.Event{Path: cfgPath, Op: watch.Created})

	assert.Equal(t, Uploaded, out)
	assert.Equal(t, 1, store.validations)
	require.Len(t, store.writes, 1)
	assert.Equal(t, wizard.Configuration, store.writes[0].kind)
}

func TestValidationRejects(t *testing.T) {
	store := acmeStore()
	store.violations = []string{"bad tag"}
	d, rec := setup(store, memFiles{cfgPath: []byte("<cfg>")})

	out := d.Handle(context.Background(), watch.Event{Path: cfgPath, Op: watch.Modified})

	assert.Equal(t, Rejected, out)
	assert.Empty(t, store.writes)

	rejected := rec.Filter(report.ActionRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "bad tag", rejected[0].Message)
	assert.Equal(t, report.LevelError, rejected[0].Level)
}

func TestEveryViolationReported(t *testing.T) {
	store := acmeStore()
	store.violations = []string{"bad tag", "missing root", "unknown field"}
	d, rec := setup(store, memFiles{cfgPath: []byte("<cfg>")})

	d.Handle(context.Background(), watch.Event{Path: cfgPath, Op: watch.Modified})

	assert.Equal(t, 3, rec.Count(report.ActionRejected))
	assert.Empty(t, store.writes)
}

func TestEntityGone(t *testing.T) {
	store := &fakeStore{}
	d, rec := setup(store, memFiles{cfgPath: []byte("<cfg/>")})

	out := d.Handle(context.Background(), watch.Event{Path: cfgPath, Op: watch.Modified})

	assert.Equal(t, Gone, out)
	assert.Empty(t, store.writes)
	assert.Zero(t, store.validations)

	gone := rec.Filter(report.ActionEntityGone)
	require.Len(t, gone, 1)
	assert.Equal(t, report.LevelInfo, gone[0].Level)
	assert.Contains(t, gone[0].Message, "42")
}

func TestUnchanged(t *testing.T) {
	store := acmeStore()
	store.unchanged = true
	d, rec := setup(store, memFiles{evtPath: []byte("<evt/>")})

	out := d.Handle(context.Background(), watch.Event{Path: evtPath, Op: watch.Modified})

	assert.Equal(t, Unchanged, out)
	assert.Equal(t, 1, rec.Count(report.ActionUnchanged))
	assert.Zero(t, rec.Count(report.ActionUploaded))
}

func TestIgnored(t *testing.T) {
	folder := filepath.Join(layout.Dir(root), "42 - Acme")

	tests := []struct {
		name    string
		event   watch.Event
		message string
	}{
		{"directory", watch.Event{Path: folder, Op: watch.Created, IsDir: true}, "directory"},
		{"shallow", watch.Event{Path: filepath.Join(root, "notes.xml")}, "structure"},
		{"wrong parent", watch.Event{Path: filepath.Join(root, "other", "42 - Acme", "EventTemplate.xml")}, "structure"},
		{"non numeric id", watch.Event{Path: filepath.Join(layout.Dir(root), "x - Acme", "EventTemplate.xml")}, "structure"},
		{"unknown stem", watch.Event{Path: filepath.Join(folder, "Notes.xml")}, "unrecognized"},
		{"editor backup", watch.Event{Path: filepath.Join(folder, "EventTemplate.xml.swp")}, "unrecognized"},
		{"wrong extension", watch.Event{Path: filepath.Join(folder, "EventTemplate.json")}, "unrecognized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := acmeStore()
			d, rec := setup(store, memFiles{tt.event.Path: []byte("x")})

			out := d.Handle(context.Background(), tt.event)

			assert.Equal(t, Ignored, out)
			assert.Empty(t, store.writes)
			assert.Empty(t, store.ctxErrs, "no remote call for ignored events")

			ignored := rec.Filter(report.ActionIgnored)
			require.Len(t, ignored, 1)
			assert.Contains(t, ignored[0].Message, tt.message)
		})
	}
}

func TestFileDisappeared(t *testing.T) {
	store := acmeStore()
	d, rec := setup(store, memFiles{})

	out := d.Handle(context.Background(), watch.Event{Path: evtPath, Op: watch.Created})

	assert.Equal(t, Ignored, out)
	assert.Empty(t, store.writes)
	ignored := rec.Filter(report.ActionIgnored)
	require.Len(t, ignored, 1)
	assert.Equal(t, report.LevelWarn, ignored[0].Level)
}

func TestFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		store func() *fakeStore
		files Files
		path  string
	}{
		{"read error", acmeStore, errFiles{}, cfgPath},
		{"wizard lookup", func() *fakeStore {
			s := acmeStore()
			s.wizardErr = boom
			return s
		}, memFiles{cfgPath: []byte("x")}, cfgPath},
		{"validation call", func() *fakeStore {
			s := acmeStore()
			s.validateErr = boom
			return s
		}, memFiles{cfgPath: []byte("x")}, cfgPath},
		{"write", func() *fakeStore {
			s := acmeStore()
			s.writeErr = boom
			return s
		}, memFiles{evtPath: []byte("x")}, evtPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store()
			d, rec := setup(store, tt.files)

			out := d.Handle(context.Background(), watch.Event{Path: tt.path, Op: watch.Modified})

			assert.Equal(t, Failed, out)
			assert.Empty(t, store.writes)
			failed := rec.Filter(report.ActionFailed)
			require.Len(t, failed, 1)
			assert.Equal(t, report.LevelError, failed[0].Level)
			assert.Error(t, failed[0].Err)
		})
	}
}

func TestRunProcessesInOrder(t *testing.T) {
	store := acmeStore()
	d, rec := setup(store, memFiles{
		cfgPath: []byte("<cfg/>"),
		evtPath: []byte("<evt/>"),
	})

	events := make(chan watch.Event, 3)
	events <- watch.Event{Path: evtPath, Op: watch.Modified}
	events <- watch.Event{Path: filepath.Join(root, "junk.txt"), Op: watch.Created}
	events <- watch.Event{Path: cfgPath, Op: watch.Modified}
	close(events)

	require.NoError(t, d.Run(context.Background(), events))

	require.Len(t, store.writes, 2)
	assert.Equal(t, wizard.EventTemplate, store.writes[0].kind)
	assert.Equal(t, wizard.Configuration, store.writes[1].kind)
	assert.Equal(t, []report.Action{
		report.ActionUploaded,
		report.ActionIgnored,
		report.ActionUploaded,
	}, rec.Actions())
}

func TestRunStopsOnCancel(t *testing.T) {
	d, _ := setup(acmeStore(), memFiles{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Run(ctx, make(chan watch.Event))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandleIgnoresCancellation(t *testing.T) {
	store := acmeStore()
	d, _ := setup(store, memFiles{evtPath: []byte("<evt/>")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := d.Handle(ctx, watch.Event{Path: evtPath, Op: watch.Modified})

	assert.Equal(t, Uploaded, out)
	for _, err := range store.ctxErrs {
		assert.NoError(t, err)
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "uploaded", Uploaded.String())
	assert.Equal(t, "gone", Gone.String())
	assert.Equal(t, "Outcome(42)", Outcome(42).String())
}
