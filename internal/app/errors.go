package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/auth"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/editor"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/export"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/gitrepo"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	errSessionNotFound = domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "No editing session is open for this page", nil)
	errForbidden       = domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
)

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, store.ErrPageNotFound):
		return http.StatusNotFound, "PAGE_NOT_FOUND", "Page not found", nil
	case errors.Is(err, store.ErrPathTaken):
		return http.StatusConflict, "PATH_TAKEN", "Another page of this funnel already uses that path", nil
	case errors.Is(err, gitrepo.ErrVersionNotFound):
		return http.StatusNotFound, "VERSION_NOT_FOUND", "Version not found", nil
	case errors.Is(err, editor.ErrMalformedAction):
		return http.StatusBadRequest, "INVALID_ACTION", err.Error(), nil
	case errors.Is(err, editor.ErrDuplicateID):
		return http.StatusConflict, "DUPLICATE_ID", err.Error(), nil
	case errors.Is(err, editor.ErrElementNotFound), errors.Is(err, editor.ErrContainerNotFound):
		return http.StatusNotFound, "ELEMENT_NOT_FOUND", err.Error(), nil
	case errors.Is(err, editor.ErrRootImmutable), errors.Is(err, editor.ErrInvalidMove):
		return http.StatusUnprocessableEntity, "INVALID_MOVE", err.Error(), nil
	case errors.Is(err, editor.ErrCorruptContent):
		return http.StatusUnprocessableEntity, "CORRUPT_CONTENT", "Stored page content is unreadable", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Format must be html, pdf or docx", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
