package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type testEnv struct {
	configPath     string
	credentialPath string
	out            *bytes.Buffer
	errOut         *bytes.Buffer

	mu     sync.Mutex
	opened []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, name := range []string{"EMMA_CONFIG", "EMMA_SERVER", "EMMA_TOKEN_STORAGE", "EMMA_OUTPUT", "EMMA_NO_BROWSER", "EMMA_VERBOSE", "EMMA_NON_INTERACTIVE"} {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	return &testEnv{
		configPath:     filepath.Join(dir, "config.yaml"),
		credentialPath: filepath.Join(dir, "credentials.json"),
		out:            &bytes.Buffer{},
		errOut:         &bytes.Buffer{},
	}
}

func (e *testEnv) root() *cobra.Command {
	return NewRootCommand(Config{
		ConfigPath:     e.configPath,
		CredentialPath: e.credentialPath,
		OutputWriter:   e.out,
		ErrorWriter:    e.errOut,
		Browser: func(url string) error {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.opened = append(e.opened, url)
			return nil
		},
	})
}

func (e *testEnv) run(args ...string) error {
	root := e.root()
	root.SetArgs(args)
	return root.Execute()
}

func (e *testEnv) openedURLs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.opened...)
}

// fakeEmma serves the ticket mutation over HTTP and the verification
// subscription over graphql-ws on the same URL.
type fakeEmma struct {
	ticketStatus int
	ticketBody   string
	token        string

	mu            sync.Mutex
	authorization []string
}

func newFakeEmma(t *testing.T) (*fakeEmma, *httptest.Server) {
	f := &fakeEmma{
		ticketStatus: http.StatusOK,
		ticketBody:   `{"data":{"getAuthenticationTicket":{"url":"https://auth.example/v/abc","secret":"s1"}}}`,
		token:        "tok_123",
	}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeEmma) authorizations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authorization...)
}

func (f *fakeEmma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		f.serveSubscription(w, r)
		return
	}
	f.mu.Lock()
	f.authorization = append(f.authorization, r.Header.Get("Authorization"))
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.ticketStatus)
	_, _ = w.Write([]byte(f.ticketBody))
}

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (f *fakeEmma) serveSubscription(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{Subprotocols: []string{"graphql-ws"}}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "connection_init" {
		return
	}
	_ = conn.WriteJSON(wsMessage{Type: "connection_ack"})
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "start" {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"token": map[string]any{
				"token": f.token,
				"user":  map[string]any{"id": "u1", "name": "Ann"},
			},
		},
	})
	_ = conn.WriteJSON(wsMessage{ID: msg.ID, Type: "data", Payload: payload})
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
	}
}
