package umami

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/buger/jsonparser"
)

const maxDetailLen = 500

// APIError is returned for non-2xx responses from Umami.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("failed to %s (HTTP %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("failed to %s (HTTP %d): %s", e.Op, e.StatusCode, e.Detail)
}

// IsUnauthorized reports whether err is an Umami 401 or 403.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
}

// errorDetail extracts a human-readable reason from an error body: the JSON
// error message when there is one, the title of an HTML error page (proxies
// and CDNs in front of self-hosted instances), or the raw text.
func errorDetail(body []byte, contentType string) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	if body[0] == '{' {
		for _, path := range [][]string{{"error", "message"}, {"error"}, {"message"}} {
			if msg, err := jsonparser.GetString(body, path...); err == nil && msg != "" {
				return truncate(msg)
			}
		}
		return truncate(string(body))
	}

	if strings.Contains(contentType, "html") || body[0] == '<' {
		if text := htmlDetail(body); text != "" {
			return truncate(text)
		}
	}

	return truncate(string(body))
}

func htmlDetail(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"title", "h1", "body"} {
		if text := collapseSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen] + "..."
}
