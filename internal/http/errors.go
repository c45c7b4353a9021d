package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/embeddings"
	"github.com/fyrsmithlabs/docchat/internal/extraction"
	"github.com/fyrsmithlabs/docchat/internal/generation"
	"github.com/fyrsmithlabs/docchat/internal/rag"
	"github.com/fyrsmithlabs/docchat/internal/registry"
	"github.com/fyrsmithlabs/docchat/internal/storage"
	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
)

// Error kinds reported to clients.
const (
	KindInvalidInput  = "invalid_input"
	KindNotFound      = "not_found"
	KindProviderError = "provider_error"
	KindInternal      = "internal"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error kind and a human-readable message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// classify maps service errors onto an HTTP status and error kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, extraction.ErrUnsupportedType),
		errors.Is(err, storage.ErrInvalidFileName),
		errors.Is(err, rag.ErrEmptyDocument),
		errors.Is(err, rag.ErrEmptyQuestion),
		errors.Is(err, rag.ErrInvalidK),
		errors.Is(err, vectorstore.ErrInvalidK),
		errors.Is(err, embeddings.ErrEmptyInput),
		errors.Is(err, embeddings.ErrMissingAPIKey),
		errors.Is(err, generation.ErrMissingAPIKey):
		return http.StatusBadRequest, KindInvalidInput
	case errors.Is(err, embeddings.ErrProvider),
		errors.Is(err, generation.ErrProvider):
		return http.StatusBadGateway, KindProviderError
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// errorResponse writes the JSON error envelope for err.
func (s *Server) errorResponse(c echo.Context, err error) error {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	return c.JSON(status, ErrorBody{Error: ErrorDetail{
		Kind:    kind,
		Message: err.Error(),
	}})
}
