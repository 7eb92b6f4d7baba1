// Package document persists documents and the recency-ordered index that
// drives the recent documents list.
package document

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/odvcencio/inkwell/pkg/content"
)

// Record keys.
const (
	DocKeyPrefix = "inkwell_doc_"
	RecentsKey   = "inkwell_recents_v1"
	LegacyKey    = "inkwell_doc_v1"
)

const (
	defaultTitle          = "Untitled Document"
	defaultMigrationTitle = "Untitled Migration"
	defaultPreviewLength  = 60
	previewEllipsis       = "..."
)

// Document is a full persisted document. Body is serialized HTML.
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"content"`
	LastModified time.Time `json:"lastModified"`
}

// Metadata is the recency index projection of a Document.
type Metadata struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastModified time.Time `json:"lastModified"`
	Preview      string    `json:"preview"`
}

// IsEmpty reports whether the document has neither title nor body text.
func (d Document) IsEmpty() bool {
	return strings.TrimSpace(d.Title) == "" && strings.TrimSpace(d.Body) == ""
}

// DocKey returns the record key for a document id.
func DocKey(id string) string {
	return DocKeyPrefix + id
}

// Preview returns the first n runes of the body's plain text, with an
// ellipsis appended only when the text was cut.
func Preview(body string, n int) string {
	if n <= 0 {
		n = defaultPreviewLength
	}
	text := content.PlainText(body)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + previewEllipsis
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return defaultTitle
	}
	return title
}
