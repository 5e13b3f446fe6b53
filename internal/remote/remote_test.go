package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docwiz/wizsync/internal/wizard"
)

// fakeAPI is an in-memory wizard API that counts every call it receives.
type fakeAPI struct {
	mu         sync.Mutex
	user       string
	secret     string
	wizards    map[int]wireWizard
	order      []int
	artifacts  map[string][]byte
	violations []string
	listError  string
	calls      map[string]int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()

	api := &fakeAPI{
		user:      "admin",
		secret:    "hunter2",
		wizards:   make(map[int]wireWizard),
		artifacts: make(map[string][]byte),
		calls:     make(map[string]int),
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL+"/", "api/v2.0/", Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return api, client
}

func (f *fakeAPI) addWizard(id int, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wizards[id] = wireWizard{ID: json.Number(strconv.Itoa(id)), Name: name, IsActive: true}
	f.order = append(f.order, id)
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+path]
}

func (f *fakeAPI) artifact(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.artifacts[path]
}

func (f *fakeAPI) set(fn func(*fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api/v2.0")
	f.calls[r.Method+" "+path]++

	user, secret, ok := r.BasicAuth()
	if !ok || user != f.user || secret != f.secret {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case path == "/users/current":
		_ = json.NewEncoder(w).Encode(map[string]any{"Name": user})

	case path == "/wizards":
		if f.listError != "" {
			_ = json.NewEncoder(w).Encode(map[string]any{"Wizards": nil, "Error": f.listError})
			return
		}
		list := make([]wireWizard, 0, len(f.order))
		for _, id := range f.order {
			list = append(list, f.wizards[id])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"Wizards": list, "Error": nil})

	case path == "/wizards/configuration/validation" && r.Method == http.MethodPost:
		_ = json.NewEncoder(w).Encode(f.violations)

	case strings.HasSuffix(path, "/configuration") || strings.HasSuffix(path, "/event"):
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write(f.artifacts[path])
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			f.artifacts[path] = body
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case strings.HasPrefix(path, "/wizards/"):
		for id, wz := range f.wizards {
			if path == "/wizards/"+strconv.Itoa(id) {
				_ = json.NewEncoder(w).Encode(map[string]any{"Wizard": wz, "Error": nil})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func login(t *testing.T, c *Client) *Session {
	t.Helper()
	s, err := c.Authenticate(context.Background(), "admin", "hunter2")
	require.NoError(t, err)
	return s
}

func TestNew_InvalidHost(t *testing.T) {
	_, err := New("", "api/", Options{})
	assert.Error(t, err)

	_, err = New("ftp://example.com/", "api/", Options{})
	assert.Error(t, err)
}

func TestNew_BaseURL(t *testing.T) {
	c, err := New("https://www.docwiz.nl/", "api/", Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://www.docwiz.nl/api", c.BaseURL())

	c, err = New("http://localhost", "/api/v2.0/", Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/api/v2.0", c.BaseURL())
}

func TestAuthenticate(t *testing.T) {
	_, client := newFakeAPI(t)

	s, err := client.Authenticate(context.Background(), "admin", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "admin", s.User())

	_, err = client.Authenticate(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 401, StatusCode(err))
}

func TestAuthenticate_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "api", Options{})
	require.NoError(t, err)

	_, err = client.Authenticate(context.Background(), "admin", "hunter2")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestAuthenticate_Transport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := New(url, "api", Options{Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.Authenticate(context.Background(), "admin", "hunter2")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.MethodGet, te.Method)
}

func TestListWizards(t *testing.T) {
	api, client := newFakeAPI(t)
	api.addWizard(42, "Acme")
	api.addWizard(7, "Intake")
	s := login(t, client)

	wizards, err := s.ListWizards(context.Background())
	require.NoError(t, err)
	require.Len(t, wizards, 2)

	assert.Equal(t, wizard.Wizard{ID: 42, Name: "Acme", Active: true}, wizards[0])
	assert.Equal(t, 7, wizards[1].ID)
}

func TestListWizards_APIError(t *testing.T) {
	api, client := newFakeAPI(t)
	api.set(func(f *fakeAPI) { f.listError = "database offline" })
	s := login(t, client)

	_, err := s.ListWizards(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "database offline", apiErr.Message)
}

func TestListWizards_StringIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Wizards":[{"ID":"12","Name":"Str","Description":"d","IsActive":false}],"Error":null}`)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "", Options{})
	require.NoError(t, err)
	s := newSession(client, "u", "p")

	wizards, err := s.ListWizards(context.Background())
	require.NoError(t, err)
	require.Len(t, wizards, 1)
	assert.Equal(t, wizard.Wizard{ID: 12, Name: "Str", Description: "d"}, wizards[0])
}

func TestWizard(t *testing.T) {
	api, client := newFakeAPI(t)
	api.addWizard(42, "Acme")
	s := login(t, client)

	wz, err := s.Wizard(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, wz)
	assert.Equal(t, "Acme", wz.Name)

	gone, err := s.Wizard(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, gone, "a missing wizard is a normal outcome, not an error")
}

func TestWizard_NullPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Wizard":null,"Error":null}`)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "", Options{})
	require.NoError(t, err)

	wz, err := newSession(client, "u", "p").Wizard(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, wz)
}

func TestWriteArtifact_Idempotent(t *testing.T) {
	api, client := newFakeAPI(t)
	api.addWizard(42, "Acme")
	s := login(t, client)
	ctx := context.Background()

	content := []byte("<template/>")

	written, err := s.WriteArtifact(ctx, 42, wizard.EventTemplate, content)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = s.WriteArtifact(ctx, 42, wizard.EventTemplate, content)
	require.NoError(t, err)
	assert.False(t, written)

	assert.Equal(t, 1, api.count(http.MethodPut, "/wizards/42/event"))
	assert.Equal(t, content, api.artifact("/wizards/42/event"))
}

func TestWriteArtifact_SkipsContentJustRead(t *testing.T) {
	api, client := newFakeAPI(t)
	api.set(func(f *fakeAPI) { f.artifacts["/wizards/42/configuration"] = []byte("<config/>") })
	s := login(t, client)
	ctx := context.Background()

	got, err := s.ReadArtifact(ctx, 42, wizard.Configuration)
	require.NoError(t, err)
	assert.Equal(t, []byte("<config/>"), got)

	written, err := s.WriteArtifact(ctx, 42, wizard.Configuration, []byte("<config/>"))
	require.NoError(t, err)
	assert.False(t, written)
	assert.Zero(t, api.count(http.MethodPut, "/wizards/42/configuration"))

	written, err = s.WriteArtifact(ctx, 42, wizard.Configuration, []byte("<config v='2'/>"))
	require.NoError(t, err)
	assert.True(t, written)

	s.Forget(42, wizard.Configuration)
	written, err = s.WriteArtifact(ctx, 42, wizard.Configuration, []byte("<config v='2'/>"))
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, 2, api.count(http.MethodPut, "/wizards/42/configuration"))
}

func TestWriteArtifact_FailureIsNotRemembered(t *testing.T) {
	var puts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		puts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "", Options{})
	require.NoError(t, err)
	s := newSession(client, "u", "p")

	for i := 0; i < 2; i++ {
		written, err := s.WriteArtifact(context.Background(), 1, wizard.EventTemplate, []byte("x"))
		assert.False(t, written)
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	}
	assert.Equal(t, int32(2), puts.Load())
}

func TestValidateConfiguration(t *testing.T) {
	api, client := newFakeAPI(t)
	s := login(t, client)

	violations, err := s.ValidateConfiguration(context.Background(), []byte("<config/>"))
	require.NoError(t, err)
	assert.Empty(t, violations)

	api.set(func(f *fakeAPI) { f.violations = []string{"bad tag", "missing root"} })
	violations, err = s.ValidateConfiguration(context.Background(), []byte("<config>"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bad tag", "missing root"}, violations)
}

func TestSession_UnauthorizedMidSession(t *testing.T) {
	api, client := newFakeAPI(t)
	s := login(t, client)

	api.set(func(f *fakeAPI) { f.secret = "rotated" })

	_, err := s.ListWizards(context.Background())
	assert.True(t, errors.Is(err, ErrUnauthorized))
}
