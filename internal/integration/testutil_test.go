package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pkt.systems/halolight/core"
	"pkt.systems/halolight/httpapi"
	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/internal/auth"
	"pkt.systems/halolight/schema"
)

const (
	adminEmail   = "admin@halolight.h7ml.cn"
	demoPassword = "123456"
)

type testServer struct {
	httpSrv *httpapi.Server
	store   *auth.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	hub := httpapi.NewHub(64, nil)
	service, err := core.NewService(schema.ServiceConfig{StateDir: filepath.Join(dir, "state")}, core.ServiceDeps{EventSink: hub})
	if err != nil {
		t.Fatalf("core.NewService: %v", err)
	}
	store, err := auth.NewStore(filepath.Join(dir, "users.json"), appconfig.DefaultSeedUsers())
	if err != nil {
		t.Fatalf("auth.NewStore: %v", err)
	}
	authService := auth.NewService(store, auth.Options{})
	httpSrv, err := httpapi.NewServer(httpapi.Config{
		SessionStorePath: filepath.Join(dir, "sessions.json"),
		LoginRatePerMin:  600,
		LoginBurst:       50,
	}, httpapi.Deps{
		Service: service,
		Auth:    authService,
		Hub:     hub,
	})
	if err != nil {
		t.Fatalf("httpapi.NewServer: %v", err)
	}
	return &testServer{httpSrv: httpSrv, store: store}
}

func (ts *testServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(ts.httpSrv.Handler())
	t.Cleanup(server.Close)
	return server
}

func (ts *testServer) login(t *testing.T, baseURL string) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}
	resp := writeJSON(t, client, http.MethodPost, baseURL+"/api/auth/login", map[string]any{
		"email":    adminEmail,
		"password": demoPassword,
	})
	var payload struct {
		User  schema.User `json:"user"`
		Token string      `json:"token"`
	}
	readJSON(t, resp, &payload)
	if payload.Token == "" || payload.User.Email != adminEmail {
		t.Fatalf("unexpected login payload %+v", payload)
	}
	return client
}

func writeJSON(t *testing.T, client *http.Client, method, url string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func readJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode >= 300 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func requireWebUI(t *testing.T) {
	t.Helper()
	requireLong(t)
	if os.Getenv("HALOLIGHT_WEBUI") == "" {
		t.Skip("set HALOLIGHT_WEBUI=1 to run browser tests")
	}
}
