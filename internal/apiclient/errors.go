package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/starford/lifeos/internal/apperr"
)

// ErrSessionExpired is returned when a request needed a refresh that failed or
// was skipped because the session had already failed.
var ErrSessionExpired = errors.New("session expired")

// Kind classifies an Error.
type Kind int

const (
	// KindInternal covers encoding failures and other local errors.
	KindInternal Kind = iota
	// KindNetwork means the backend could not be reached.
	KindNetwork
	// KindStatus means the backend answered with a non-2xx status.
	KindStatus
	// KindAuth means the session is expired and refreshing did not help.
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindAuth:
		return "auth"
	default:
		return "internal"
	}
}

// Error is the uniform error returned by every Client call.
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets a 404 match apperr.ErrNotFound.
func (e *Error) Is(target error) bool {
	return target == apperr.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// isNetworkError reports whether err means the host could not be reached.
func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// detailMessage extracts a human-readable message from an error body. It
// understands {"detail": "..."}, {"detail": [{"msg": "..."}]}, {"error": "..."}
// and {"message": "..."}, and falls back to the raw text.
func detailMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return text
	}
	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if payload.Error != "" {
		return payload.Error
	}
	if payload.Message != "" {
		return payload.Message
	}
	return text
}

func statusError(method, path string, code int, body []byte) *Error {
	msg := detailMessage(body)
	if msg == "" {
		msg = http.StatusText(code)
	}
	kind := KindStatus
	if code == http.StatusUnauthorized {
		kind = KindAuth
	}
	return &Error{Kind: kind, Method: method, Path: path, StatusCode: code, Message: msg}
}
