// Package export publishes saved pages as static HTML, PDF or DOCX and
// archives the artifacts in object storage.
package export

import (
	"errors"
	"time"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/editor"
)

// Format represents the publish output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat maps a query value to a Format. Empty means HTML.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF, FormatDOCX:
		return Format(value), nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Page is the saved page handed to the publisher.
type Page struct {
	ID        string
	FunnelID  string
	Name      string
	PathName  string
	Elements  editor.Document
	Author    string
	UpdatedAt time.Time
}

// Result contains the publish output
type Result struct {
	Data       []byte
	Filename   string
	MimeType   string
	ArchiveKey string
}

var (
	// ErrUnsupportedFormat indicates an unknown publish format.
	ErrUnsupportedFormat = errors.New("unsupported publish format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
