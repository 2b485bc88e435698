package thread

import "fmt"

// InvalidURLError is returned when the thread URL cannot be fetched successfully or
// does not have the https://<host>/<board>/thread/<id> shape.
type InvalidURLError struct {
	URL    string // The URL supplied by the user
	Reason string // Human-readable explanation
	Err    error  // Underlying error, if any
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid thread url %q: %s", e.URL, e.Reason)
}

func (e *InvalidURLError) Unwrap() error {
	return e.Err
}

// MalformedPageError is returned when a fetched thread page lacks an extractable
// title or has no media links.
type MalformedPageError struct {
	URL    string
	Reason string
	Err    error
}

func (e *MalformedPageError) Error() string {
	return fmt.Sprintf("malformed thread page %s: %s", e.URL, e.Reason)
}

func (e *MalformedPageError) Unwrap() error {
	return e.Err
}

// TransferError represents the failure of a single media download.
type TransferError struct {
	URL        string // Media URL that failed
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	Reason     string
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transfer of %s failed (HTTP %d): %s", e.URL, e.StatusCode, e.Reason)
	}

	return fmt.Sprintf("transfer of %s failed: %s", e.URL, e.Reason)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NetworkError represents a transport failure while fetching the thread page.
type NetworkError struct {
	Operation string // The operation that failed (e.g., "fetch_thread")
	URL       string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s of %s: %v", e.Operation, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DirectoryError represents a failure to create the destination directory.
type DirectoryError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory error for '%s': %s", e.Path, e.Reason)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}
