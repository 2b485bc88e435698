package page

import (
	"strings"

	"github.com/italolelis/thread_downloader/internal/thread"
)

// DefaultMediaHost is the host serving imageboard attachments.
const DefaultMediaHost = "i.4cdn.org"

const schemePrefix = "https:"

// ThreadTitle derives the folder name from the page title: the text after the first
// "-", trimmed, with spaces replaced by underscores. "/g/ - Test Thread" gives "Test_Thread".
func ThreadTitle(doc Document) (string, error) {
	el, ok := doc.Find("title")
	if !ok {
		return "", &thread.MalformedPageError{Reason: "page has no title element"}
	}

	parts := strings.Split(el.Text(), "-")
	if len(parts) < 2 {
		return "", &thread.MalformedPageError{Reason: "page title has no '-' separator"}
	}

	name := strings.ReplaceAll(strings.TrimSpace(parts[1]), " ", "_")

	switch {
	case name == "", name == ".", name == "..":
		return "", &thread.MalformedPageError{Reason: "page title yields an empty folder name"}
	case strings.ContainsAny(name, `/\`):
		return "", &thread.MalformedPageError{Reason: "page title yields a folder name with a path separator"}
	}

	return name, nil
}

// MediaLinks returns the targets of every hyperlink pointing at host, in document order
// and without deduplication. Scheme-relative targets are made absolute with "https:".
func MediaLinks(doc Document, host string) []string {
	anchors := doc.FindAll("a", func(el Element) bool {
		href, ok := el.Attr("href")

		return ok && strings.Contains(href, host)
	})

	links := make([]string, 0, len(anchors))

	for _, a := range anchors {
		href, _ := a.Attr("href")
		links = append(links, absolute(href))
	}

	return links
}

func absolute(href string) string {
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "https:") || strings.HasPrefix(lower, "http:") {
		return href
	}

	return schemePrefix + href
}
