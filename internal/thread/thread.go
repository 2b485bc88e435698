// Package thread holds the request model of a thread download and the
// validation rules for imageboard thread URLs.
package thread

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"
)

// InvalidURLMessage is the reason reported for URLs that do not look like a thread.
const InvalidURLMessage = "Please provide a valid thread URL"

const (
	segmentCount   = 6
	threadSegment  = "thread"
	threadKeyIndex = 4
	boardIndex     = 3
)

// Request is a single thread download as asked for by the user.
type Request struct {
	URL string
	// Dir is the destination root; the thread folder is created inside it.
	Dir string
	// Limit caps the number of media files downloaded. Zero or less means no cap.
	Limit int
}

// Thread identifies a thread inside a board.
type Thread struct {
	Board string
	ID    string
}

// IsThreadURL reports whether rawURL splits on "/" into exactly six segments,
// the fifth being "thread" and the last being made of digits only.
func IsThreadURL(rawURL string) bool {
	s := strings.Split(rawURL, "/")
	if len(s) != segmentCount || s[threadKeyIndex] != threadSegment {
		return false
	}

	return isNumeric(s[len(s)-1])
}

// Validate checks the status of the thread page fetch and then the URL shape.
// A non-200 status is an error; a wrongly shaped URL is reported as false.
func Validate(rawURL string, statusCode int) (bool, error) {
	if statusCode != http.StatusOK {
		return false, &InvalidURLError{
			URL:    rawURL,
			Reason: fmt.Sprintf("%d Error", statusCode),
		}
	}

	return IsThreadURL(rawURL), nil
}

// ParseURL returns the board and thread id of a valid thread URL.
func ParseURL(rawURL string) (Thread, error) {
	if !IsThreadURL(rawURL) {
		return Thread{}, &InvalidURLError{URL: rawURL, Reason: InvalidURLMessage}
	}

	s := strings.Split(rawURL, "/")

	return Thread{Board: s[boardIndex], ID: s[len(s)-1]}, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}

	return true
}
