package cleaner

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"syscall"
)

// ErrorReason categorizes why an archive or delete failed
type ErrorReason int

const (
	ErrorPermissionDenied ErrorReason = iota
	ErrorFileNotFound
	ErrorCollision
	ErrorCrossDevice
	ErrorFileInUse
	ErrorInvalidPath
	ErrorIO
)

// String returns a human-readable error reason
func (e ErrorReason) String() string {
	switch e {
	case ErrorPermissionDenied:
		return "Permission denied"
	case ErrorFileNotFound:
		return "File not found"
	case ErrorCollision:
		return "Destination exists"
	case ErrorCrossDevice:
		return "Cross-device move failed"
	case ErrorFileInUse:
		return "File is in use"
	case ErrorInvalidPath:
		return "Invalid path"
	case ErrorIO:
		return "I/O error"
	default:
		return "Unspecified error"
	}
}

// MarshalText encodes the reason by name in reports
func (e ErrorReason) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// ErrCollision is wrapped by collision failures
var ErrCollision = errors.New("archive destination already exists")

// ActionError is the failure of one file's archive or delete
type ActionError struct {
	Path      string
	Dest      string
	Reason    ErrorReason
	Original  error
	Retryable bool
}

// Error implements the error interface
func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Path, e.Reason, e.Original)
}

// Unwrap returns the underlying error
func (e *ActionError) Unwrap() error {
	return e.Original
}

// UserMessage returns a user-friendly error message
func (e *ActionError) UserMessage() string {
	switch e.Reason {
	case ErrorPermissionDenied:
		return fmt.Sprintf("Permission denied: %s", e.Path)
	case ErrorFileNotFound:
		return fmt.Sprintf("Vanished since scan: %s", e.Path)
	case ErrorCollision:
		return fmt.Sprintf("Archive already has %s (use --collision suffix to keep both)", e.Dest)
	case ErrorCrossDevice:
		return fmt.Sprintf("Could not move %s across filesystems: %v", e.Path, e.Original)
	case ErrorFileInUse:
		return fmt.Sprintf("File is being used: %s (close the application and try again)", e.Path)
	case ErrorInvalidPath:
		return fmt.Sprintf("Invalid or unsafe path: %s (%v)", e.Path, e.Original)
	default:
		return fmt.Sprintf("Error processing %s: %v", e.Path, e.Original)
	}
}

// CategorizeError analyzes an error and returns a categorized ActionError
func CategorizeError(path string, err error) *ActionError {
	if err == nil {
		return nil
	}

	actErr := &ActionError{
		Path:     path,
		Original: err,
		Reason:   ErrorIO,
	}

	var existing *ActionError
	if errors.As(err, &existing) {
		return existing
	}

	if errors.Is(err, ErrCollision) {
		actErr.Reason = ErrorCollision
		return actErr
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM, syscall.EROFS:
			actErr.Reason = ErrorPermissionDenied
		case syscall.EBUSY, syscall.ETXTBSY:
			actErr.Reason = ErrorFileInUse
			actErr.Retryable = true
		case syscall.ENOENT:
			actErr.Reason = ErrorFileNotFound
		case syscall.EXDEV:
			actErr.Reason = ErrorCrossDevice
		case syscall.EEXIST, syscall.ENOTEMPTY:
			actErr.Reason = ErrorCollision
		case syscall.EISDIR, syscall.ENOTDIR, syscall.ELOOP, syscall.ENAMETOOLONG:
			actErr.Reason = ErrorInvalidPath
		}
		return actErr
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		actErr.Reason = ErrorFileNotFound
	case errors.Is(err, fs.ErrPermission):
		actErr.Reason = ErrorPermissionDenied
	case errors.Is(err, fs.ErrExist):
		actErr.Reason = ErrorCollision
	}

	return actErr
}

// GroupErrors groups action errors by reason
func GroupErrors(errs []*ActionError) map[ErrorReason][]*ActionError {
	grouped := make(map[ErrorReason][]*ActionError)
	for _, err := range errs {
		grouped[err.Reason] = append(grouped[err.Reason], err)
	}
	return grouped
}

// FormatErrorSummary creates a user-friendly summary of errors
func FormatErrorSummary(errs []*ActionError) string {
	if len(errs) == 0 {
		return ""
	}

	grouped := GroupErrors(errs)
	reasons := make([]ErrorReason, 0, len(grouped))
	for reason := range grouped {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	var b strings.Builder
	b.WriteString("\nIssues encountered:\n")

	for i, reason := range reasons {
		branch := "├─"
		if i == len(reasons)-1 {
			branch = "└─"
		}
		fmt.Fprintf(&b, "   %s %s: %d files\n", branch, reason, len(grouped[reason]))

		if tip := reasonTip(reason); tip != "" {
			stem := "│"
			if i == len(reasons)-1 {
				stem = " "
			}
			fmt.Fprintf(&b, "   %s  └─ Tip: %s\n", stem, tip)
		}
	}

	return b.String()
}

func reasonTip(reason ErrorReason) string {
	switch reason {
	case ErrorPermissionDenied:
		return "Check ownership of the files and their directories"
	case ErrorFileInUse:
		return "Close applications and rerun"
	case ErrorCollision:
		return "Rerun with --collision suffix or clear the archive"
	case ErrorCrossDevice:
		return "Check free space on the archive filesystem"
	default:
		return ""
	}
}
