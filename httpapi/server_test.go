package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"pkt.systems/halolight/core"
	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/internal/auth"
	"pkt.systems/halolight/internal/eventbus"
	"pkt.systems/halolight/schema"
)

type testEnv struct {
	server  *Server
	handler http.Handler
}

func newTestEnv(t *testing.T, cfg Config) testEnv {
	t.Helper()
	return newTestEnvWithBus(t, cfg, nil)
}

// busSink feeds both the SSE hub and the WebSocket bus.
type busSink struct {
	hub *Hub
	bus *eventbus.Bus
}

func (s busSink) OnTabEvent(event schema.TabEvent) {
	s.hub.OnTabEvent(event)
	s.bus.OnTabEvent(event)
}

func (s busSink) OnSettingsEvent(event schema.SettingsEvent) {
	s.hub.OnSettingsEvent(event)
	s.bus.OnSettingsEvent(event)
}

func newTestEnvWithBus(t *testing.T, cfg Config, bus *eventbus.Bus) testEnv {
	t.Helper()
	dir := t.TempDir()
	hash, err := bcrypt.GenerateFromPassword([]byte(appconfig.DemoPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	seeds := appconfig.DefaultSeedUsers()
	for i := range seeds {
		seeds[i].Password = ""
		seeds[i].PasswordHash = string(hash)
	}
	store, err := auth.NewStore(filepath.Join(dir, "users.json"), seeds)
	if err != nil {
		t.Fatalf("auth store: %v", err)
	}
	hub := NewHub(32, nil)
	var sink core.EventSink = hub
	if bus != nil {
		sink = busSink{hub: hub, bus: bus}
	}
	svc, err := core.NewService(schema.ServiceConfig{StateDir: filepath.Join(dir, "state")}, core.ServiceDeps{EventSink: sink})
	if err != nil {
		t.Fatalf("core service: %v", err)
	}
	server, err := NewServer(cfg, Deps{
		Service: svc,
		Auth:    auth.NewService(store, auth.Options{}),
		Hub:     hub,
		Bus:     bus,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return testEnv{server: server, handler: server.Handler()}
}

func (e testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		req = httptest.NewRequest(method, target, strings.NewReader(string(data)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
		req.Header.Set("Accept", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e testEnv) login(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": appconfig.DemoPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var payload authPayload
	decodeBody(t, rec, &payload)
	return payload.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginSetsAuthCookies(t *testing.T) {
	env := newTestEnv(t, Config{})
	cases := []struct {
		name     string
		remember bool
		maxAge   int
	}{
		{name: "session", remember: false, maxAge: 86400},
		{name: "remember", remember: true, maxAge: 7 * 86400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
				"email":    "admin@halolight.h7ml.cn",
				"password": "123456",
				"remember": tc.remember,
			})
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			cookies := rec.Result().Cookies()
			token := findCookie(cookies, "auth_token")
			if token == nil || !token.HttpOnly || token.MaxAge != tc.maxAge || token.Path != "/" {
				t.Fatalf("unexpected auth_token cookie: %+v", token)
			}
			if !strings.HasPrefix(token.Value, "mock-token-1-") {
				t.Fatalf("unexpected token %q", token.Value)
			}
			userData := findCookie(cookies, "user_data")
			if userData == nil || userData.HttpOnly || userData.MaxAge != tc.maxAge {
				t.Fatalf("unexpected user_data cookie: %+v", userData)
			}
			user, err := decodeUserData(userData.Value)
			if err != nil {
				t.Fatalf("decode user_data: %v", err)
			}
			if user.ID != "1" || user.Role != schema.RoleAdmin {
				t.Fatalf("unexpected user %+v", user)
			}
		})
	}
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t, Config{})
	cases := []struct {
		email, password string
		status          int
		message         string
	}{
		{"nobody@halolight.h7ml.cn", "123456", http.StatusNotFound, "用户不存在"},
		{"admin@halolight.h7ml.cn", "wrong", http.StatusUnauthorized, "密码错误"},
	}
	for _, tc := range cases {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": tc.email, "password": tc.password})
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.email, tc.status, rec.Code)
		}
		var payload map[string]string
		decodeBody(t, rec, &payload)
		if payload["error"] != tc.message {
			t.Fatalf("%s: expected %q, got %q", tc.email, tc.message, payload["error"])
		}
	}
}

func TestFormLoginRedirectsAndRerendersErrors(t *testing.T) {
	env := newTestEnv(t, Config{})

	form := url.Values{"email": {"user@halolight.h7ml.cn"}, "password": {"bad"}, "redirect": {"/users"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "密码错误") || !strings.Contains(body, "user@halolight.h7ml.cn") {
		t.Fatalf("expected form to show the error and keep the email")
	}

	form.Set("password", "123456")
	form.Set("remember", "on")
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/users" {
		t.Fatalf("expected redirect to /users, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if c := findCookie(rec.Result().Cookies(), "auth_token"); c == nil || c.MaxAge != 7*86400 {
		t.Fatalf("expected remembered auth cookie, got %+v", c)
	}
}

func TestLogoutExpiresCookies(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.login(t, "admin@halolight.h7ml.cn")
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	headers := strings.Join(rec.Header().Values("Set-Cookie"), "\n")
	for _, name := range []string{"auth_token=", "user_data="} {
		if !strings.Contains(headers, name) {
			t.Fatalf("expected %s to be cleared in %q", name, headers)
		}
	}
	if strings.Count(headers, "Max-Age=0") < 2 {
		t.Fatalf("expected both cookies to expire: %q", headers)
	}
}

func TestLogoutDeletesBrowserSession(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.login(t, "admin@halolight.h7ml.cn")
	rec := env.do(t, http.MethodGet, "/api/tabs", token, nil)
	sessCookie := findCookie(rec.Result().Cookies(), "halolight_session")
	if sessCookie == nil {
		t.Fatalf("expected a session cookie")
	}
	if _, ok := env.server.sessions.get(sessCookie.Value); !ok {
		t.Fatalf("expected session to exist before logout")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	req.AddCookie(sessCookie)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status %d", rec.Code)
	}
	if _, ok := env.server.sessions.get(sessCookie.Value); ok {
		t.Fatalf("expected session to be deleted on logout")
	}
	expired := findCookie(rec.Result().Cookies(), "halolight_session")
	if expired == nil || expired.MaxAge >= 0 {
		t.Fatalf("expected session cookie to expire, got %+v", expired)
	}
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(t, http.MethodGet, "/api/tabs", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var payload map[string]string
	decodeBody(t, rec, &payload)
	if payload["error"] != "Unauthorized" {
		t.Fatalf("expected Unauthorized, got %q", payload["error"])
	}
	if rec := env.do(t, http.MethodGet, "/api/tabs", "mock-token-99-1", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unknown user token to be rejected, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/users?page=2", nil)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected page redirect, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login?redirect=%2Fusers%3Fpage%3D2" {
		t.Fatalf("unexpected redirect %q", got)
	}
}

func TestTabsAPI(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.login(t, "admin@halolight.h7ml.cn")

	rec := env.do(t, http.MethodPost, "/api/tabs", token, map[string]any{"title": "用户管理", "path": "/users"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var added schema.AddTabResponse
	decodeBody(t, rec, &added)
	if !added.Created || !added.Tab.Active {
		t.Fatalf("expected created active tab, got %+v", added)
	}

	rec = env.do(t, http.MethodPost, "/api/tabs", token, map[string]any{"title": "另一个标题", "path": "/users/"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing path, got %d", rec.Code)
	}
	var again schema.AddTabResponse
	decodeBody(t, rec, &again)
	if again.Created || again.Tab.ID != added.Tab.ID || again.Tab.Title != "用户管理" {
		t.Fatalf("expected de-duplicated tab, got %+v", again)
	}

	rec = env.do(t, http.MethodGet, "/api/tabs/lookup?path=/users", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup: expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/tabs/lookup?path=/files", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("lookup missing: expected 404, got %d", rec.Code)
	}

	if rec := env.do(t, http.MethodDelete, "/api/tabs/home", token, nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected home tab removal to conflict, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/tabs/missing/activate", token, nil)
	var activated schema.ActivateTabResponse
	decodeBody(t, rec, &activated)
	if rec.Code != http.StatusOK || activated.Changed || activated.ActiveTab != added.Tab.ID {
		t.Fatalf("expected unknown activate to be a no-op, got %d %+v", rec.Code, activated)
	}

	rec = env.do(t, http.MethodPatch, "/api/tabs/"+string(added.Tab.ID), token, map[string]any{"title": "成员"})
	var updated schema.UpdateTabResponse
	decodeBody(t, rec, &updated)
	if !updated.Found || updated.Tab.Title != "成员" {
		t.Fatalf("expected tab title update, got %+v", updated)
	}

	rec = env.do(t, http.MethodDelete, "/api/tabs/"+string(added.Tab.ID), token, nil)
	var removed schema.RemoveTabResponse
	decodeBody(t, rec, &removed)
	if rec.Code != http.StatusOK || removed.ActiveTab != schema.HomeTabID {
		t.Fatalf("expected home to become active, got %d %+v", rec.Code, removed)
	}

	rec = env.do(t, http.MethodPost, "/api/tabs/clear", token, nil)
	var cleared schema.ClearTabsResponse
	decodeBody(t, rec, &cleared)
	if len(cleared.Tabs) != 1 || cleared.Tabs[0].ID != schema.HomeTabID {
		t.Fatalf("expected only home after clear, got %+v", cleared.Tabs)
	}
}

func TestSettingsAPI(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.login(t, "manager@halolight.h7ml.cn")

	rec := env.do(t, http.MethodPatch, "/api/settings", token, map[string]any{"skin": "neon"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid skin to be rejected, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPatch, "/api/settings", token, map[string]any{"skin": "ocean", "showFooter": false})
	var resp schema.SettingsResponse
	decodeBody(t, rec, &resp)
	if resp.Settings.Skin != "ocean" || resp.Settings.ShowFooter || !resp.Settings.ShowTabBar {
		t.Fatalf("unexpected settings %+v", resp.Settings)
	}
	rec = env.do(t, http.MethodPost, "/api/settings/reset", token, nil)
	decodeBody(t, rec, &resp)
	if resp.Settings != schema.DefaultUISettings() {
		t.Fatalf("expected defaults after reset, got %+v", resp.Settings)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t, Config{LoginRatePerMin: 1, LoginBurst: 1})
	body := map[string]any{"email": "admin@halolight.h7ml.cn", "password": "wrong"}
	if rec := env.do(t, http.MethodPost, "/api/auth/login", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected first attempt to reach auth, got %d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestLoginLimiterIgnoresSpoofedForwardedFor(t *testing.T) {
	body := `{"email":"admin@halolight.h7ml.cn","password":"wrong"}`
	attempt := func(env testEnv, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:5555"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	env := newTestEnv(t, Config{LoginRatePerMin: 1, LoginBurst: 2})
	var codes []int
	for i := range 6 {
		codes = append(codes, attempt(env, fmt.Sprintf("198.51.100.%d", i+1)))
	}
	if codes[2] != http.StatusTooManyRequests || codes[5] != http.StatusTooManyRequests {
		t.Fatalf("expected rotating X-Forwarded-For to stay limited, got %v", codes)
	}

	proxied := newTestEnv(t, Config{LoginRatePerMin: 1, LoginBurst: 2, TrustProxy: true})
	for i := range 4 {
		if code := attempt(proxied, fmt.Sprintf("198.51.100.%d", i+1)); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d behind trusted proxy: expected 401, got %d", i, code)
		}
	}
}

func TestRegisterForgotResetFlow(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "新用户", "email": "new@halolight.h7ml.cn", "password": "abcdef", "confirmPassword": "abcdef",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var registered authPayload
	decodeBody(t, rec, &registered)
	if registered.User.ID != "4" || registered.User.Role != schema.RoleUser {
		t.Fatalf("unexpected registered user %+v", registered.User)
	}
	if c := findCookie(rec.Result().Cookies(), "auth_token"); c == nil || c.MaxAge != 7*86400 {
		t.Fatalf("expected 7 day cookie after register, got %+v", c)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "重复", "email": "new@halolight.h7ml.cn", "password": "abcdef", "confirmPassword": "abcdef",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected duplicate email conflict, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": "new@halolight.h7ml.cn"})
	var forgot struct {
		ResetToken string `json:"resetToken"`
	}
	decodeBody(t, rec, &forgot)
	if !strings.HasPrefix(forgot.ResetToken, auth.ResetTokenPrefix+"-") {
		t.Fatalf("unexpected reset token %q", forgot.ResetToken)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": "bogus", "password": "123abc", "confirmPassword": "123abc"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bogus token rejection, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": forgot.ResetToken, "password": "123abc", "confirmPassword": "123abc"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "new@halolight.h7ml.cn", "password": "123abc"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login with new password, got %d", rec.Code)
	}
}

func TestPagesRenderShellAndAddTab(t *testing.T) {
	env := newTestEnv(t, Config{})
	token := env.login(t, "admin@halolight.h7ml.cn")

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<title>用户管理 · HaloLight</title>", `property="og:title"`, `data-tab-path="/users"`, "管理员"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
	rec = env.do(t, http.MethodGet, "/api/tabs/lookup?path=/users", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected page visit to open a tab, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 page, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/terms", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<h1") {
		t.Fatalf("expected public terms page, got %d", rec.Code)
	}
}

func TestAccountSwitching(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.handler)
	defer ts.Close()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar, CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	post := func(path string, body string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		return resp
	}
	post("/api/auth/login", `{"email":"admin@halolight.h7ml.cn","password":"123456"}`).Body.Close()
	post("/api/auth/login", `{"email":"user@halolight.h7ml.cn","password":"123456"}`).Body.Close()

	resp, err := client.Get(ts.URL + "/api/accounts")
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	var book accountsPayload
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	resp.Body.Close()
	if len(book.Accounts) != 2 || book.ActiveAccountID != "2" {
		t.Fatalf("expected two accounts with user 2 active, got %+v", book)
	}

	resp = post("/api/accounts/switch", `{"id":"1"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("switch: expected 200, got %d", resp.StatusCode)
	}
	resp, err = client.Get(ts.URL + "/api/auth/me")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	var me struct {
		User schema.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	resp.Body.Close()
	if me.User.ID != "1" {
		t.Fatalf("expected switched user 1, got %+v", me.User)
	}

	resp = post("/api/accounts/switch", `{"id":"9"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected unknown account 404, got %d", resp.StatusCode)
	}
}

func TestMetaAndNav(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(t, http.MethodGet, "/api/meta?path=/analytics", "", nil)
	var meta struct {
		Title string `json:"title"`
	}
	decodeBody(t, rec, &meta)
	if meta.Title != "数据分析 · HaloLight" {
		t.Fatalf("unexpected meta title %q", meta.Title)
	}
	rec = env.do(t, http.MethodGet, "/api/nav", "", nil)
	var nav struct {
		Nav      []map[string]string `json:"nav"`
		UserMenu []map[string]string `json:"userMenu"`
	}
	decodeBody(t, rec, &nav)
	if len(nav.Nav) == 0 || nav.Nav[0]["href"] != "/" || len(nav.UserMenu) != 2 {
		t.Fatalf("unexpected nav %+v", nav)
	}
}

func TestBasePathPrefixesRoutes(t *testing.T) {
	env := newTestEnv(t, Config{BasePath: "/admin"})
	rec := env.do(t, http.MethodGet, "/admin/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected prefixed health check, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	if got := rec.Header().Get("Location"); got != "/admin/login?redirect=%2Fusers" {
		t.Fatalf("unexpected redirect %q", got)
	}
}
