package http

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/rag"
)

// HealthResponse is the response body for GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// UploadResponse is the response body for POST /api/upload-document.
type UploadResponse struct {
	CollectionID    string `json:"collection_id"`
	CollectionName  string `json:"collection_name"`
	FileName        string `json:"file_name"`
	ChunksProcessed int    `json:"chunks_processed"`
	Message         string `json:"message"`
}

// RAGChatRequest is the request body for POST /api/rag-chat.
type RAGChatRequest struct {
	CollectionID string `json:"collection_id"`
	UserMessage  string `json:"user_message"`
	APIKey       string `json:"api_key"`
	Model        string `json:"model"`
	TopK         int    `json:"top_k"`
	UseRAG       *bool  `json:"use_rag"`
}

// ChatRequest is the request body for POST /api/chat. DeveloperMessage
// carries the caller's system-role framing for the conversation.
type ChatRequest struct {
	DeveloperMessage string `json:"developer_message"`
	UserMessage      string `json:"user_message"`
	APIKey           string `json:"api_key"`
	Model            string `json:"model"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleUploadDocument ingests a multipart file upload into a new
// collection.
func (s *Server) handleUploadDocument(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return s.errorResponse(c, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return s.errorResponse(c, err)
	}

	result, err := s.rag.Ingest(c.Request().Context(), rag.IngestRequest{
		FileName:       fileHeader.Filename,
		Data:           data,
		CollectionName: c.FormValue("collection_name"),
		APIKey:         c.FormValue("api_key"),
	})
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, UploadResponse{
		CollectionID:    result.CollectionID,
		CollectionName:  result.CollectionName,
		FileName:        result.FileName,
		ChunksProcessed: result.ChunkCount,
		Message:         "Document uploaded and indexed successfully",
	})
}

// handleListCollections lists all registered collections as a bare array.
func (s *Server) handleListCollections(c echo.Context) error {
	return c.JSON(http.StatusOK, s.rag.ListCollections())
}

// handleDeleteCollection deletes a collection by id.
func (s *Server) handleDeleteCollection(c echo.Context) error {
	id := c.Param("id")
	if err := s.rag.DeleteCollection(c.Request().Context(), id); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "collection deleted"})
}

// handleRAGChat streams an answer to a question about a collection.
func (s *Server) handleRAGChat(c echo.Context) error {
	var req RAGChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	useRetrieval := true
	if req.UseRAG != nil {
		useRetrieval = *req.UseRAG
	}

	return s.stream(c, func(ctx context.Context, onFragment func(ctx context.Context, fragment string) error) error {
		return s.rag.Answer(ctx, rag.AnswerRequest{
			CollectionID: req.CollectionID,
			Question:     req.UserMessage,
			Model:        req.Model,
			APIKey:       req.APIKey,
			K:            req.TopK,
			UseRetrieval: useRetrieval,
		}, onFragment)
	})
}

// handleChat streams an answer to a free-standing question.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return s.stream(c, func(ctx context.Context, onFragment func(ctx context.Context, fragment string) error) error {
		return s.rag.Chat(ctx, req.DeveloperMessage, req.UserMessage, req.Model, req.APIKey, onFragment)
	})
}

// stream runs fn, forwarding each fragment to the client as plain text with
// a flush per fragment. Errors before the first fragment surface as a JSON
// error; once streaming has begun the response simply ends early.
func (s *Server) stream(c echo.Context, fn func(ctx context.Context, onFragment func(ctx context.Context, fragment string) error) error) error {
	res := c.Response()
	started := false

	err := fn(c.Request().Context(), func(ctx context.Context, fragment string) error {
		if !started {
			res.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
			res.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := res.Write([]byte(fragment)); err != nil {
			return err
		}
		res.Flush()
		return nil
	})
	if err != nil {
		if !started {
			return s.errorResponse(c, err)
		}
		// Headers are gone; terminate the stream without appending.
		s.logger.Warn("stream ended early", zap.Error(err))
		return nil
	}

	if !started {
		// Model produced no output; still a successful empty answer.
		res.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
		res.WriteHeader(http.StatusOK)
	}
	return nil
}
