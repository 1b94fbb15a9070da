package apiclient

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Session tracks the access-token refresh lifecycle of a Client.
//
// A refresh is shared by every caller that hits a 401 while it is in flight.
// Each successful refresh advances the generation; a caller whose request was
// sent under an older generation retries without refreshing again. A failed
// refresh marks the session failed: later 401s skip the refresh and the
// expiry hook fires once. MarkAuthenticated clears both flags.
type Session struct {
	mu         sync.Mutex
	group      singleflight.Group
	generation uint64
	failed     bool
	redirected bool
	onExpired  func()
}

// Generation returns the number of successful refreshes so far.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Failed reports whether the last refresh failed.
func (s *Session) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// MarkAuthenticated records a successful authenticated response.
func (s *Session) MarkAuthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = false
	s.redirected = false
}

// OnExpired sets the hook fired once per failed session.
func (s *Session) OnExpired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = fn
}

// refresh runs fn unless a refresh newer than seen already succeeded or the
// session has failed. Concurrent callers share one run of fn.
func (s *Session) refresh(ctx context.Context, seen uint64, fn func(context.Context) error) error {
	s.mu.Lock()
	switch {
	case s.generation != seen:
		s.mu.Unlock()
		return nil
	case s.failed:
		s.mu.Unlock()
		return ErrSessionExpired
	}
	s.mu.Unlock()

	_, err, _ := s.group.Do("refresh", func() (any, error) {
		err := fn(context.WithoutCancel(ctx))
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.failed = true
			return nil, err
		}
		s.generation++
		return nil, nil
	})
	return err
}

// fail marks the session failed without a refresh attempt.
func (s *Session) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
}

// expire fires the expiry hook unless it already fired for this failed session.
func (s *Session) expire() {
	s.mu.Lock()
	if s.redirected {
		s.mu.Unlock()
		return
	}
	s.redirected = true
	hook := s.onExpired
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}
