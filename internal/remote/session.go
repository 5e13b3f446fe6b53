package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/docwiz/wizsync/internal/wizard"
)

// Session is an authenticated view of the API. It carries the credential pair
// attached to every call and the last content known to be stored remotely
// for each artifact.
type Session struct {
	client *Client
	user   string
	secret string

	mu    sync.Mutex
	known map[artifactKey][]byte
}

type artifactKey struct {
	wizardID int
	kind     wizard.ArtifactKind
}

func newSession(c *Client, user, secret string) *Session {
	return &Session{
		client: c,
		user:   user,
		secret: secret,
		known:  make(map[artifactKey][]byte),
	}
}

// User returns the identity the session authenticated as.
func (s *Session) User() string {
	return s.user
}

type wireWizard struct {
	ID          json.Number `json:"ID"`
	Name        string      `json:"Name"`
	Description string      `json:"Description"`
	IsActive    bool        `json:"IsActive"`
}

func (w wireWizard) toWizard() (wizard.Wizard, error) {
	id, err := strconv.Atoi(w.ID.String())
	if err != nil {
		return wizard.Wizard{}, fmt.Errorf("invalid wizard ID %q: %w", w.ID, err)
	}
	return wizard.Wizard{
		ID:          id,
		Name:        w.Name,
		Description: w.Description,
		Active:      w.IsActive,
	}, nil
}

type wizardsEnvelope struct {
	Wizards []wireWizard    `json:"Wizards"`
	Error   json.RawMessage `json:"Error"`
}

type wizardEnvelope struct {
	Wizard *wireWizard     `json:"Wizard"`
	Error  json.RawMessage `json:"Error"`
}

// apiErrorMessage returns the message held in an envelope's Error field, or
// "" when the field is absent or null.
func apiErrorMessage(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	return string(raw)
}

// ListWizards fetches every wizard, in the order the API returns them.
func (s *Session) ListWizards(ctx context.Context) ([]wizard.Wizard, error) {
	const part = "/wizards"

	status, body, err := s.call(ctx, http.MethodGet, part, nil)
	if err != nil {
		return nil, err
	}
	if err := s.expectOK(http.MethodGet, part, status); err != nil {
		return nil, err
	}

	var env wizardsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", part, err)
	}
	if msg := apiErrorMessage(env.Error); msg != "" {
		return nil, &APIError{Endpoint: part, Message: msg}
	}

	wizards := make([]wizard.Wizard, 0, len(env.Wizards))
	for _, w := range env.Wizards {
		wz, err := w.toWizard()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", part, err)
		}
		wizards = append(wizards, wz)
	}
	return wizards, nil
}

// Wizard fetches one wizard. A nil wizard with a nil error means the wizard
// no longer exists; callers must handle that as a normal outcome.
func (s *Session) Wizard(ctx context.Context, id int) (*wizard.Wizard, error) {
	part := fmt.Sprintf("/wizards/%d", id)

	status, body, err := s.call(ctx, http.MethodGet, part, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err := s.expectOK(http.MethodGet, part, status); err != nil {
		return nil, err
	}

	var env wizardEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", part, err)
	}
	if msg := apiErrorMessage(env.Error); msg != "" {
		return nil, &APIError{Endpoint: "/wizards/{id}", Message: msg}
	}
	if env.Wizard == nil {
		return nil, nil
	}

	wz, err := env.Wizard.toWizard()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", part, err)
	}
	return &wz, nil
}

func artifactPart(id int, kind wizard.ArtifactKind) string {
	return fmt.Sprintf("/wizards/%d/%s", id, kind.Resource())
}

// ReadArtifact downloads an artifact and remembers it as the last-known
// remote content.
func (s *Session) ReadArtifact(ctx context.Context, id int, kind wizard.ArtifactKind) ([]byte, error) {
	part := artifactPart(id, kind)

	status, body, err := s.call(ctx, http.MethodGet, part, nil)
	if err != nil {
		return nil, err
	}
	if err := s.expectOK(http.MethodGet, part, status); err != nil {
		return nil, err
	}

	s.remember(id, kind, body)
	return body, nil
}

// WriteArtifact uploads content unless it equals the last-known remote
// content, in which case no call is made. It reports whether a write was
// issued. Writing identical content twice therefore reaches the network once,
// and editor save patterns that rewrite a file unchanged are no-ops.
func (s *Session) WriteArtifact(ctx context.Context, id int, kind wizard.ArtifactKind, content []byte) (bool, error) {
	if s.isKnown(id, kind, content) {
		return false, nil
	}

	part := artifactPart(id, kind)
	status, _, err := s.call(ctx, http.MethodPut, part, content)
	if err != nil {
		return false, err
	}
	if err := s.expectOK(http.MethodPut, part, status); err != nil {
		return false, err
	}

	s.remember(id, kind, content)
	return true, nil
}

// ValidateConfiguration asks the remote to validate a configuration document.
// It returns the violations found; an empty list means valid.
func (s *Session) ValidateConfiguration(ctx context.Context, content []byte) ([]string, error) {
	const part = "/wizards/configuration/validation"

	status, body, err := s.call(ctx, http.MethodPost, part, content)
	if err != nil {
		return nil, err
	}
	if err := s.expectOK(http.MethodPost, part, status); err != nil {
		return nil, err
	}

	var violations []string
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &violations); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", part, err)
		}
	}
	return violations, nil
}

// Forget drops the last-known content of an artifact so the next write is
// always sent.
func (s *Session) Forget(id int, kind wizard.ArtifactKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.known, artifactKey{id, kind})
}

func (s *Session) remember(id int, kind wizard.ArtifactKind, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[artifactKey{id, kind}] = bytes.Clone(content)
}

func (s *Session) isKnown(id int, kind wizard.ArtifactKind, content []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	known, ok := s.known[artifactKey{id, kind}]
	return ok && bytes.Equal(known, content)
}
