package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", NewTransientError(errors.New("x"), 503), true},
		{"wrapped transient", fmt.Errorf("fetch: %w", NewTransientError(errors.New("x"), 429)), true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"i/o timeout text", errors.New("dial tcp: i/o timeout"), true},
		{"plain", errors.New("bad request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	base := errors.New("root")
	te := NewTransientError(base, 500)
	if !errors.Is(te, base) {
		t.Error("expected errors.Is to find the wrapped error")
	}
	if te.Error() != "root" {
		t.Errorf("unexpected message %q", te.Error())
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)

	if d := ParseRetryAfter("12", now); d != 12*time.Second {
		t.Errorf("seconds form: got %v", d)
	}
	if d := ParseRetryAfter("", now); d != 0 {
		t.Errorf("empty: got %v", d)
	}
	if d := ParseRetryAfter("-3", now); d != 0 {
		t.Errorf("negative: got %v", d)
	}
	if d := ParseRetryAfter("soon", now); d != 0 {
		t.Errorf("garbage: got %v", d)
	}
	date := now.Add(90 * time.Second).Format(http.TimeFormat)
	if d := ParseRetryAfter(date, now); d != 90*time.Second {
		t.Errorf("date form: got %v", d)
	}
}
