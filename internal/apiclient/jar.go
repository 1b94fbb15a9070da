package apiclient

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"
)

// CookieStore persists the session cookies between runs.
type CookieStore interface {
	LoadCookies() ([]byte, error)
	SaveCookies(data []byte) error
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

// jar is a cookie jar for the backend host that mirrors its cookies into a CookieStore.
type jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	base    *url.URL
	store   CookieStore
	cookies map[string]storedCookie
	logger  *slog.Logger
}

var _ http.CookieJar = (*jar)(nil)

func newJar(base *url.URL, store CookieStore, logger *slog.Logger) (*jar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &jar{
		inner:   inner,
		base:    base,
		store:   store,
		cookies: make(map[string]storedCookie),
		logger:  logger,
	}
	if store == nil {
		return j, nil
	}

	data, err := store.LoadCookies()
	if err != nil || len(data) == 0 {
		return j, err
	}
	var saved []storedCookie
	if err := json.Unmarshal(data, &saved); err != nil {
		logger.Warn("discarding unreadable session cookies", slog.String("error", err.Error()))
		return j, nil
	}
	now := time.Now()
	restored := make([]*http.Cookie, 0, len(saved))
	for _, sc := range saved {
		if !sc.Expires.IsZero() && sc.Expires.Before(now) {
			continue
		}
		j.cookies[sc.Name] = sc
		restored = append(restored, sc.httpCookie())
	}
	inner.SetCookies(base, restored)
	return j, nil
}

func (sc storedCookie) httpCookie() *http.Cookie {
	return &http.Cookie{
		Name:     sc.Name,
		Value:    sc.Value,
		Path:     sc.Path,
		Domain:   sc.Domain,
		Expires:  sc.Expires,
		Secure:   sc.Secure,
		HttpOnly: sc.HttpOnly,
	}
}

func (j *jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner.SetCookies(u, cookies)
	if u.Host != j.base.Host {
		return
	}
	now := time.Now()
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			delete(j.cookies, c.Name)
			continue
		}
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.cookies[c.Name] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
	j.persist()
}

func (j *jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// value returns the stored value of the named cookie.
func (j *jar) value(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	return c.Value, ok
}

// clear drops every cookie, in memory and in the store.
func (j *jar) clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	inner, err := cookiejar.New(nil)
	if err == nil {
		j.inner = inner
	}
	j.cookies = make(map[string]storedCookie)
	j.persist()
}

// persist writes the tracked cookies. Callers hold j.mu.
func (j *jar) persist() {
	if j.store == nil {
		return
	}
	var data []byte
	if len(j.cookies) > 0 {
		list := make([]storedCookie, 0, len(j.cookies))
		for _, c := range j.cookies {
			list = append(list, c)
		}
		var err error
		if data, err = json.Marshal(list); err != nil {
			j.logger.Error("encode session cookies", slog.String("error", err.Error()))
			return
		}
	}
	if err := j.store.SaveCookies(data); err != nil {
		j.logger.Error("save session cookies", slog.String("error", err.Error()))
	}
}
