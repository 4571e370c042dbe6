package catalogsync

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify sync failures for callers and logs. None of them
// is fatal: every failure degrades to "stale but available" or "not yet
// cached".
var (
	ErrNetwork            = errors.New("network error")
	ErrParse              = errors.New("parse error")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("not found")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "sync failure"
	}
	return strings.Join(parts, ": ")
}
