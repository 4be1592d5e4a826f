package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case names the constructor, the sentinel it should match, and whether
// errors.Is should see it through one level of fmt.Errorf wrapping.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"NotFound wraps ErrNotFound", NotFound("snippet", "abc123"), ErrNotFound, true},
		{"ValidationFailed wraps ErrValidation", ValidationFailed("title", "title is required"), ErrValidation, true},
		{"Conflict wraps ErrConflict", Conflict("user", "a@b.c"), ErrConflict, true},
		{"Forbidden wraps ErrForbidden", Forbidden("admins only"), ErrForbidden, true},
		{"Unauthorized wraps ErrUnauthorized", Unauthorized("bad credentials"), ErrUnauthorized, true},
		{"QuotaExceeded wraps ErrQuotaExceeded", QuotaExceeded(40), ErrQuotaExceeded, true},
		{"Unavailable wraps ErrUnavailable", Unavailable("create", errors.New("busy")), ErrUnavailable, true},
		{"NotFound does NOT match ErrValidation", NotFound("snippet", "abc123"), ErrValidation, false},
		{"QuotaExceeded does NOT match ErrConflict", QuotaExceeded(40), ErrConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			if got := errors.Is(wrapped, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("creating snippet: %w", ValidationFailed("title", "title is required"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As() should extract *AppError from the chain")
	}
	if appErr.Field != "title" {
		t.Errorf("Field = %q, want %q", appErr.Field, "title")
	}
	if appErr.Message != "title is required" {
		t.Errorf("Message = %q, want %q", appErr.Message, "title is required")
	}
}

func TestQuotaExceeded_Message(t *testing.T) {
	err := QuotaExceeded(40)

	want := "You have reached the maximum limit of 40 snippets."
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	limit, ok := LimitOf(fmt.Errorf("tx: %w", err))
	if !ok || limit != 40 {
		t.Errorf("LimitOf() = (%d, %v), want (40, true)", limit, ok)
	}
}

func TestLimitOf_OtherErrors(t *testing.T) {
	if _, ok := LimitOf(NotFound("snippet", "x")); ok {
		t.Error("LimitOf() should be false for NotFound")
	}
	if _, ok := LimitOf(errors.New("plain")); ok {
		t.Error("LimitOf() should be false for a plain error")
	}
}

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Unavailable("deleting snippet", cause)

	if !errors.Is(err, cause) {
		t.Error("Unavailable should keep the driver error in the chain")
	}
	if err.Error() == cause.Error() {
		t.Error("Unavailable must not leak the driver message")
	}
}
