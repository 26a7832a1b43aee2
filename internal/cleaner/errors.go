package cleaner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"syscall"

	"github.com/fenilsonani/duster/internal/security"
)

// ErrorReason categorizes why a deletion failed
type ErrorReason int

const (
	ErrorNotFound ErrorReason = iota
	ErrorPermissionDenied
	ErrorFileInUse
	ErrorTypeChanged
	ErrorProtectedPath
	ErrorCancelled
	ErrorNotInScanResult
	ErrorUnknown
)

// String returns the stable, lowercase reason recorded in a Failure
func (e ErrorReason) String() string {
	switch e {
	case ErrorNotFound:
		return "not found"
	case ErrorPermissionDenied:
		return "permission denied"
	case ErrorFileInUse:
		return "in use"
	case ErrorTypeChanged:
		return "type changed"
	case ErrorProtectedPath:
		return "protected path"
	case ErrorCancelled:
		return "cancelled"
	case ErrorNotInScanResult:
		return "not in scan result"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason as its string form
func (e ErrorReason) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes a reason written by MarshalText
func (e *ErrorReason) UnmarshalText(text []byte) error {
	s := string(text)
	for r := ErrorNotFound; r <= ErrorUnknown; r++ {
		if r.String() == s {
			*e = r
			return nil
		}
	}
	return fmt.Errorf("unknown error reason %q", s)
}

// DeletionError represents a detailed deletion error
type DeletionError struct {
	Path      string
	Reason    ErrorReason
	Original  error
	Retryable bool
}

// Error implements the error interface
func (e *DeletionError) Error() string {
	if e.Original == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Path, e.Reason, e.Original)
}

// Unwrap returns the underlying error
func (e *DeletionError) Unwrap() error {
	return e.Original
}

// UserMessage returns a user-friendly error message
func (e *DeletionError) UserMessage() string {
	switch e.Reason {
	case ErrorPermissionDenied:
		return fmt.Sprintf("⚠️  Permission denied: %s", e.Path)
	case ErrorFileInUse:
		return fmt.Sprintf("⚠️  File is being used: %s (close the application and try again)", e.Path)
	case ErrorNotFound:
		return fmt.Sprintf("ℹ️  Already gone: %s", e.Path)
	case ErrorTypeChanged:
		return fmt.Sprintf("⚠️  Changed since the scan: %s (scan again)", e.Path)
	case ErrorProtectedPath:
		return fmt.Sprintf("❌ Refusing to delete protected path: %s", e.Path)
	case ErrorCancelled:
		return fmt.Sprintf("ℹ️  Skipped, cleanup cancelled: %s", e.Path)
	case ErrorNotInScanResult:
		return fmt.Sprintf("⚠️  Not part of the scan result: %s", e.Path)
	default:
		return fmt.Sprintf("❌ Error deleting %s: %v", e.Path, e.Original)
	}
}

// CategorizeError analyzes an error and returns a categorized DeletionError
func CategorizeError(path string, err error) *DeletionError {
	if err == nil {
		return nil
	}

	delErr := &DeletionError{
		Path:     path,
		Original: err,
		Reason:   ErrorUnknown,
	}

	if errors.Is(err, security.ErrProtectedPath) || errors.Is(err, security.ErrInvalidPath) {
		delErr.Reason = ErrorProtectedPath
		return delErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		delErr.Reason = ErrorCancelled
		return delErr
	}

	if errors.Is(err, fs.ErrNotExist) {
		delErr.Reason = ErrorNotFound
		return delErr
	}

	if errors.Is(err, fs.ErrPermission) {
		delErr.Reason = ErrorPermissionDenied
		return delErr
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM, syscall.EROFS:
			delErr.Reason = ErrorPermissionDenied
		case syscall.EBUSY, syscall.ETXTBSY:
			delErr.Reason = ErrorFileInUse
			delErr.Retryable = true
		case syscall.ENOENT:
			delErr.Reason = ErrorNotFound
		case syscall.EISDIR, syscall.ENOTDIR:
			delErr.Reason = ErrorTypeChanged
		}
	}

	return delErr
}

// GroupFailures groups failures by reason
func GroupFailures(failures []Failure) map[ErrorReason][]Failure {
	grouped := make(map[ErrorReason][]Failure)
	for _, f := range failures {
		grouped[f.Reason] = append(grouped[f.Reason], f)
	}
	return grouped
}

// FormatErrorSummary creates a user-friendly summary of failures
func FormatErrorSummary(failures []Failure) string {
	if len(failures) == 0 {
		return ""
	}

	grouped := GroupFailures(failures)
	reasons := make([]ErrorReason, 0, len(grouped))
	for r := range grouped {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	var b strings.Builder
	b.WriteString("\n⚠️  Issues encountered:\n")
	for i, r := range reasons {
		branch := "├─"
		if i == len(reasons)-1 {
			branch = "└─"
		}
		fmt.Fprintf(&b, "   %s %s: %d items\n", branch, r, len(grouped[r]))
		if tip := reasonTip(r); tip != "" {
			stem := "│"
			if i == len(reasons)-1 {
				stem = " "
			}
			fmt.Fprintf(&b, "   %s  └─ Tip: %s\n", stem, tip)
		}
	}
	return b.String()
}

func reasonTip(r ErrorReason) string {
	switch r {
	case ErrorPermissionDenied:
		return "Check ownership or run with elevated permissions"
	case ErrorFileInUse:
		return "Close applications and retry"
	case ErrorTypeChanged, ErrorNotInScanResult:
		return "Run scan again before cleaning"
	default:
		return ""
	}
}
