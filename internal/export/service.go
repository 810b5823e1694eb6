package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Service renders saved pages and hands the artifacts to the archive.
type Service struct {
	archive Archiver
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a publisher. archive may be nil.
func NewService(archive Archiver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{archive: archive, logger: logger, now: time.Now}
}

// Publish renders page in the requested format. When an archive is
// configured the artifact is stored and its key returned with the result;
// an archive failure is logged and does not fail the publish.
func (s *Service) Publish(ctx context.Context, page Page, format Format) (*Result, error) {
	html, err := RenderPageHTML(page)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var result *Result
	switch format {
	case FormatHTML, "":
		result = &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(page.Name) + ".html",
			MimeType: "text/html; charset=utf-8",
		}
	case FormatPDF:
		result, err = exportPDF(ctx, html, page.Name)
	case FormatDOCX:
		result, err = exportDOCX(ctx, html, page.Name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		key := ArchiveKey(page, result.Filename, s.now())
		if err := s.archive.Put(ctx, key, result.Data, result.MimeType); err != nil {
			s.logger.Warn("archive published page",
				zap.String("page_id", page.ID),
				zap.String("key", key),
				zap.Error(err),
			)
		} else {
			result.ArchiveKey = key
		}
	}
	return result, nil
}
