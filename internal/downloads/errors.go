package downloads

import "fmt"

// StatusError reports a non-200 response for a queued download.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: unexpected status %d", e.URL, e.StatusCode)
}
