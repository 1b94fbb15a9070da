package apiclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/lifeos/internal/apperr"
)

// fakeBackend answers /auth/refresh by issuing a new access cookie and rejects
// other requests without the current one.
type fakeBackend struct {
	mu           sync.Mutex
	token        string
	refreshes    atomic.Int32
	refreshFails bool
	refreshGate  chan struct{}
}

func (b *fakeBackend) handler(t *testing.T, next http.HandlerFunc) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		current, fails := b.token, b.refreshFails
		b.mu.Unlock()

		if r.URL.Path == "/auth/refresh" {
			b.refreshes.Add(1)
			if b.refreshGate != nil {
				<-b.refreshGate
			}
			if fails {
				http.Error(w, `{"detail":"refresh token expired"}`, http.StatusUnauthorized)
				return
			}
			b.mu.Lock()
			b.token = "t" + strconv.Itoa(int(b.refreshes.Load()))
			current = b.token
			b.mu.Unlock()
			http.SetCookie(w, &http.Cookie{Name: "access_token", Value: current, Path: "/"})
			w.WriteHeader(http.StatusNoContent)
			return
		}

		c, err := r.Cookie("access_token")
		if err != nil || c.Value != current || current == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"not authenticated"}`)
			return
		}
		next(w, r)
	})
}

func okJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestConcurrent401sRefreshOnce(t *testing.T) {
	b := &fakeBackend{refreshGate: make(chan struct{})}
	c := newTestClient(t, b.handler(t, okJSON(`{"ok":true}`)))

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out struct{ OK bool }
			errs[i] = c.Request(context.Background(), http.MethodGet, "/tasks", &out)
			if errs[i] == nil && !out.OK {
				errs[i] = errors.New("empty body")
			}
		}(i)
	}

	// Let the first refresh arrive, then release it.
	deadline := time.After(5 * time.Second)
	for b.refreshes.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("refresh never issued")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(b.refreshGate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: %v", i, err)
		}
	}
	if got := b.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
	if g := c.Session().Generation(); g != 1 {
		t.Errorf("generation = %d, want 1", g)
	}
}

func TestFailedRefreshFailsFast(t *testing.T) {
	b := &fakeBackend{refreshFails: true}
	var expired atomic.Int32
	c := newTestClient(t, b.handler(t, okJSON(`{}`)),
		WithOnSessionExpired(func() { expired.Add(1) }))

	err := c.Request(context.Background(), http.MethodGet, "/tasks", nil)
	if !errors.Is(err, ErrSessionExpired) || !IsKind(err, KindAuth) {
		t.Fatalf("first err = %v, want session expired", err)
	}
	err = c.Request(context.Background(), http.MethodGet, "/reminders", nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("second err = %v", err)
	}
	if got := b.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
	if got := expired.Load(); got != 1 {
		t.Errorf("expiry hook fired %d times, want 1", got)
	}
	if !c.Session().Failed() {
		t.Error("session not marked failed")
	}
}

func TestSuccessResetsFailedSession(t *testing.T) {
	b := &fakeBackend{refreshFails: true}
	var expired atomic.Int32
	c := newTestClient(t, b.handler(t, okJSON(`{}`)),
		WithOnSessionExpired(func() { expired.Add(1) }))

	_ = c.Request(context.Background(), http.MethodGet, "/tasks", nil)

	// A new login sets a valid cookie.
	b.mu.Lock()
	b.token = "fresh"
	b.refreshFails = false
	b.mu.Unlock()
	c.jar.SetCookies(c.base, []*http.Cookie{{Name: "access_token", Value: "fresh", Path: "/"}})

	if err := c.Request(context.Background(), http.MethodGet, "/tasks", nil); err != nil {
		t.Fatalf("authenticated request: %v", err)
	}
	if c.Session().Failed() {
		t.Fatal("success did not reset the session")
	}

	b.mu.Lock()
	b.token = "rotated"
	b.refreshFails = true
	b.mu.Unlock()
	_ = c.Request(context.Background(), http.MethodGet, "/tasks", nil)
	if got := b.refreshes.Load(); got != 2 {
		t.Errorf("refreshes = %d, want 2", got)
	}
	if got := expired.Load(); got != 2 {
		t.Errorf("expiry hook fired %d times, want 2", got)
	}
}

func TestWithoutRefreshSkipsRefresh(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(t, b.handler(t, okJSON(`{}`)))
	err := c.Request(context.Background(), http.MethodPost, "/auth/login", nil, WithoutRefresh())
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("err = %v", err)
	}
	if b.refreshes.Load() != 0 {
		t.Error("refresh issued for opted-out request")
	}
}

func TestErrorDetailExtraction(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"Task not found"}`, "Task not found"},
		{"detail list", `{"detail":[{"msg":"field required"},{"msg":"bad date"}]}`, "field required; bad date"},
		{"error field", `{"error":"boom"}`, "boom"},
		{"message field", `{"message":"nope"}`, "nope"},
		{"plain text", `upstream exploded`, "upstream exploded"},
		{"empty", ``, "Not Found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, tc.body)
			}))
			err := c.Request(context.Background(), http.MethodGet, "/tasks/1", nil)
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("err = %T %v", err, err)
			}
			if e.Kind != KindStatus || e.StatusCode != http.StatusNotFound || e.Message != tc.want {
				t.Errorf("error = %+v, want message %q", e, tc.want)
			}
			if !errors.Is(err, apperr.ErrNotFound) {
				t.Errorf("errors.Is(%v, ErrNotFound) = false", err)
			}
		})
	}
}

func TestNetworkErrorNamesBackend(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := "http://" + ln.Addr().String()
	_ = ln.Close()

	c, err := New(addr)
	if err != nil {
		t.Fatal(err)
	}
	err = c.Request(context.Background(), http.MethodGet, "/tasks", nil)
	if !IsKind(err, KindNetwork) {
		t.Fatalf("err = %v, want network error", err)
	}
	if !strings.Contains(err.Error(), addr) {
		t.Errorf("message %q does not name %s", err.Error(), addr)
	}
}

func TestHeadersAndBodies(t *testing.T) {
	var got *http.Request
	var gotBody string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm: %v", err)
			}
			f, _, err := r.FormFile("photo")
			if err == nil {
				data, _ := io.ReadAll(f)
				gotBody = r.FormValue("date") + ":" + string(data)
			}
		} else {
			data, _ := io.ReadAll(r.Body)
			gotBody = string(data)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"n1","date":"2026-03-14"}`)
	}), WithTimezone("Europe/Paris"))

	note, err := c.UploadNotePhoto(context.Background(), "2026-03-14", "day.jpg", strings.NewReader("jpeg"))
	if err != nil {
		t.Fatalf("UploadNotePhoto: %v", err)
	}
	if note.ID != "n1" {
		t.Errorf("note = %+v", note)
	}
	if gotBody != "2026-03-14:jpeg" {
		t.Errorf("multipart body = %q", gotBody)
	}
	if tz := got.Header.Get("X-Timezone"); tz != "Europe/Paris" {
		t.Errorf("X-Timezone = %q", tz)
	}
	if got.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	if _, err := c.SaveNote(context.Background(), "2026-03-14", "hello"); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	if got.Header.Get("Content-Type") != "application/json" || !strings.Contains(gotBody, `"content":"hello"`) {
		t.Errorf("json request = %s %q", got.Header.Get("Content-Type"), gotBody)
	}
}

type memCookies struct{ data []byte }

func (m *memCookies) LoadCookies() ([]byte, error) { return m.data, nil }
func (m *memCookies) SaveCookies(d []byte) error  { m.data = d; return nil }

func TestCookiesPersistAcrossClients(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	h := http.NewServeMux()
	h.HandleFunc("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: token, Path: "/", HttpOnly: true})
		_, _ = io.WriteString(w, `{"user":{"id":"u1","email":"a@b.c"}}`)
	})
	h.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("access_token"); err != nil || c.Value != token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id":"u1","email":"a@b.c"}`)
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := &memCookies{}
	first, err := New(srv.URL, WithCookieStore(store))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(store.data) == 0 {
		t.Fatal("cookies not persisted")
	}

	second, err := New(srv.URL, WithCookieStore(store))
	if err != nil {
		t.Fatal(err)
	}
	u, ok, err := second.Bootstrap(context.Background())
	if err != nil || !ok || u.ID != "u1" {
		t.Fatalf("Bootstrap = %+v, %v, %v", u, ok, err)
	}
	got, ok := second.AccessTokenExpiry()
	if !ok || !got.Equal(exp) {
		t.Errorf("AccessTokenExpiry = %v, %v; want %v", got, ok, exp)
	}

	_ = second.Logout(context.Background())
	if len(store.data) != 0 || second.HasSession() {
		t.Error("logout did not clear cookies")
	}
}

func TestBootstrapLoggedOut(t *testing.T) {
	b := &fakeBackend{refreshFails: true}
	c := newTestClient(t, b.handler(t, okJSON(`{}`)))
	_, ok, err := c.Bootstrap(context.Background())
	if err != nil || ok {
		t.Errorf("Bootstrap = %v, %v; want logged out", ok, err)
	}
}

func TestBootstrapTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), WithSessionCheckTimeout(50*time.Millisecond))
	defer close(release)

	_, ok, err := c.Bootstrap(context.Background())
	if err != nil || ok {
		t.Errorf("Bootstrap = %v, %v; want logged out", ok, err)
	}
}

func TestMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestClient(t, okJSON(`[]`), WithMetrics(NewMetrics(reg)))
	if _, err := c.ListTasks(context.Background()); err != nil {
		t.Fatal(err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "lifeos_client_requests_total" {
			found = len(f.GetMetric()) == 1 && f.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Error("request counter not recorded")
	}
}

func TestZoneFromPath(t *testing.T) {
	cases := map[string]string{
		"/usr/share/zoneinfo/Europe/Paris": "Europe/Paris",
		"/var/db/timezone/zoneinfo/UTC":    "UTC",
		"/etc/localtime":                   "",
	}
	for in, want := range cases {
		if got := zoneFromPath(in); got != want {
			t.Errorf("zoneFromPath(%q) = %q, want %q", in, got, want)
		}
	}
	if tz := DetectTimezone(); !validZone(tz) {
		t.Errorf("DetectTimezone() = %q is not loadable", tz)
	}
}
