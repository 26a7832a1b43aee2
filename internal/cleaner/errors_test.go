package cleaner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/fenilsonani/duster/internal/security"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantReason    ErrorReason
		wantRetryable bool
	}{
		// Standard errors
		{"os.ErrNotExist", os.ErrNotExist, ErrorNotFound, false},
		{"os.ErrPermission", os.ErrPermission, ErrorPermissionDenied, false},
		{"os.ErrExist", os.ErrExist, ErrorUnknown, false},

		// Syscall errors - Permission
		{"EACCES", syscall.EACCES, ErrorPermissionDenied, false},
		{"EPERM", syscall.EPERM, ErrorPermissionDenied, false},
		{"EROFS", syscall.EROFS, ErrorPermissionDenied, false},

		// Syscall errors - File in use (retryable)
		{"EBUSY", syscall.EBUSY, ErrorFileInUse, true},
		{"ETXTBSY", syscall.ETXTBSY, ErrorFileInUse, true},

		// Syscall errors - File operations
		{"ENOENT", syscall.ENOENT, ErrorNotFound, false},
		{"EISDIR", syscall.EISDIR, ErrorTypeChanged, false},
		{"ENOTDIR", syscall.ENOTDIR, ErrorTypeChanged, false},

		// Wrapped path errors
		{"path error", &os.PathError{Op: "remove", Path: "/x", Err: syscall.EBUSY}, ErrorFileInUse, true},
		{"wrapped not exist", fmt.Errorf("lstat: %w", os.ErrNotExist), ErrorNotFound, false},

		// Validation and cancellation
		{"protected", fmt.Errorf("%w: /usr", security.ErrProtectedPath), ErrorProtectedPath, false},
		{"invalid", fmt.Errorf("%w: relative", security.ErrInvalidPath), ErrorProtectedPath, false},
		{"cancelled", context.Canceled, ErrorCancelled, false},
		{"deadline", context.DeadlineExceeded, ErrorCancelled, false},

		// Unknown errors
		{"generic error", errors.New("something went wrong"), ErrorUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError("/test/path", tt.err)
			if result == nil {
				t.Fatal("unexpected nil result")
			}
			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %v, want %v", result.Reason, tt.wantReason)
			}
			if result.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", result.Retryable, tt.wantRetryable)
			}
			if result.Path != "/test/path" {
				t.Errorf("Path = %q, want /test/path", result.Path)
			}
		})
	}
}

func TestCategorizeErrorNil(t *testing.T) {
	if CategorizeError("/x", nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestErrorReasonString(t *testing.T) {
	tests := []struct {
		reason ErrorReason
		want   string
	}{
		{ErrorNotFound, "not found"},
		{ErrorPermissionDenied, "permission denied"},
		{ErrorFileInUse, "in use"},
		{ErrorTypeChanged, "type changed"},
		{ErrorProtectedPath, "protected path"},
		{ErrorCancelled, "cancelled"},
		{ErrorNotInScanResult, "not in scan result"},
		{ErrorUnknown, "unknown"},
		{ErrorReason(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("ErrorReason(%d).String() = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestErrorReasonText(t *testing.T) {
	data, err := json.Marshal(Failure{Path: "/a", Reason: ErrorNotFound})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"reason":"not found"`) {
		t.Errorf("reason not encoded as text: %s", data)
	}

	var f Failure
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatal(err)
	}
	if f.Reason != ErrorNotFound {
		t.Errorf("Reason = %v, want %v", f.Reason, ErrorNotFound)
	}

	var r ErrorReason
	if err := r.UnmarshalText([]byte("exploded")); err == nil {
		t.Error("expected error for unknown reason")
	}
}

func TestDeletionError_Error(t *testing.T) {
	withCause := &DeletionError{Path: "/a", Reason: ErrorFileInUse, Original: syscall.EBUSY}
	if !strings.Contains(withCause.Error(), "/a: in use") {
		t.Errorf("unexpected message %q", withCause.Error())
	}
	if !errors.Is(withCause, syscall.EBUSY) {
		t.Error("DeletionError should unwrap to its cause")
	}

	bare := &DeletionError{Path: "/b", Reason: ErrorTypeChanged}
	if bare.Error() != "/b: type changed" {
		t.Errorf("unexpected message %q", bare.Error())
	}
}

func TestDeletionError_UserMessage(t *testing.T) {
	for r := ErrorNotFound; r <= ErrorUnknown; r++ {
		msg := (&DeletionError{Path: "/some/path", Reason: r, Original: errors.New("x")}).UserMessage()
		if !strings.Contains(msg, "/some/path") {
			t.Errorf("message for %v does not mention the path: %q", r, msg)
		}
	}
}

func TestFormatErrorSummary(t *testing.T) {
	if FormatErrorSummary(nil) != "" {
		t.Error("expected empty summary for no failures")
	}

	summary := FormatErrorSummary([]Failure{
		{Path: "/a", Reason: ErrorNotFound},
		{Path: "/b", Reason: ErrorNotFound},
		{Path: "/c", Reason: ErrorPermissionDenied},
	})

	for _, want := range []string{"not found: 2 items", "permission denied: 1 items", "Tip:"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
	if strings.Index(summary, "not found") > strings.Index(summary, "permission denied") {
		t.Error("reasons should be listed in a stable order")
	}
}

func TestGroupFailures(t *testing.T) {
	grouped := GroupFailures([]Failure{
		{Path: "/a", Reason: ErrorNotFound},
		{Path: "/b", Reason: ErrorFileInUse},
		{Path: "/c", Reason: ErrorNotFound},
	})
	if len(grouped[ErrorNotFound]) != 2 || len(grouped[ErrorFileInUse]) != 1 {
		t.Errorf("unexpected grouping: %v", grouped)
	}
	if len(GroupFailures(nil)) != 0 {
		t.Error("expected empty grouping")
	}
}
