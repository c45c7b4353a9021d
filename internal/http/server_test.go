package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/embeddings"
	docchathttp "github.com/fyrsmithlabs/docchat/internal/http"
	"github.com/fyrsmithlabs/docchat/internal/rag"
	"github.com/fyrsmithlabs/docchat/internal/registry"
)

// stubRAG is a canned-response implementation of the RAG surface.
type stubRAG struct {
	ingestResult *rag.IngestResult
	ingestErr    error
	lastIngest   rag.IngestRequest

	summaries []registry.Summary

	deleteErr error
	deletedID string

	fragments  []string
	answerErr  error
	lastAnswer rag.AnswerRequest

	chatErr              error
	lastDeveloperMessage string
	lastQuestion         string
}

func (s *stubRAG) Ingest(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error) {
	s.lastIngest = req
	if s.ingestErr != nil {
		return nil, s.ingestErr
	}
	return s.ingestResult, nil
}

func (s *stubRAG) ListCollections() []registry.Summary {
	return s.summaries
}

func (s *stubRAG) DeleteCollection(ctx context.Context, id string) error {
	s.deletedID = id
	return s.deleteErr
}

func (s *stubRAG) Answer(ctx context.Context, req rag.AnswerRequest, onFragment func(ctx context.Context, fragment string) error) error {
	s.lastAnswer = req
	if s.answerErr != nil {
		return s.answerErr
	}
	for _, fragment := range s.fragments {
		if err := onFragment(ctx, fragment); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubRAG) Chat(ctx context.Context, developerMessage, question, model, apiKey string, onFragment func(ctx context.Context, fragment string) error) error {
	s.lastDeveloperMessage = developerMessage
	s.lastQuestion = question
	if s.chatErr != nil {
		return s.chatErr
	}
	for _, fragment := range s.fragments {
		if err := onFragment(ctx, fragment); err != nil {
			return err
		}
	}
	return nil
}

func newServer(t *testing.T, stub *stubRAG) *docchathttp.Server {
	t.Helper()
	srv, err := docchathttp.NewServer(stub, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *docchathttp.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &stubRAG{})

	rec := doJSON(t, srv, nethttp.MethodGet, "/api/health", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(fileContent))
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	stub := &stubRAG{ingestResult: &rag.IngestResult{
		CollectionID:   "col-1",
		CollectionName: "Contract",
		FileName:       "contract.txt",
		ChunkCount:     3,
	}}
	srv := newServer(t, stub)

	body, contentType := multipartUpload(t, map[string]string{
		"api_key":         "sk-test",
		"collection_name": "Contract",
	}, "contract.txt", "document text")

	req := httptest.NewRequest(nethttp.MethodPost, "/api/upload-document", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"collection_id": "col-1",
		"collection_name": "Contract",
		"file_name": "contract.txt",
		"chunks_processed": 3,
		"message": "Document uploaded and indexed successfully"
	}`, rec.Body.String())

	assert.Equal(t, "contract.txt", stub.lastIngest.FileName)
	assert.Equal(t, "document text", string(stub.lastIngest.Data))
	assert.Equal(t, "sk-test", stub.lastIngest.APIKey)
	assert.Equal(t, "Contract", stub.lastIngest.CollectionName)
}

func TestUploadDocument_MissingFile(t *testing.T) {
	srv := newServer(t, &stubRAG{})

	body, contentType := multipartUpload(t, map[string]string{"api_key": "sk-test"}, "", "")
	req := httptest.NewRequest(nethttp.MethodPost, "/api/upload-document", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func TestUploadDocument_IngestFailure(t *testing.T) {
	stub := &stubRAG{ingestErr: rag.ErrEmptyDocument}
	srv := newServer(t, stub)

	body, contentType := multipartUpload(t, map[string]string{"api_key": "sk-test"}, "empty.txt", "")
	req := httptest.NewRequest(nethttp.MethodPost, "/api/upload-document", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	var errBody docchathttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, docchathttp.KindInvalidInput, errBody.Error.Kind)
}

func TestListCollections(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	stub := &stubRAG{summaries: []registry.Summary{
		{ID: "col-1", Name: "Contract", FileName: "contract.txt", ChunkCount: 3, CreatedAt: created},
	}}
	srv := newServer(t, stub)

	rec := doJSON(t, srv, nethttp.MethodGet, "/api/collections", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	// A bare array, not an object wrapper.
	var resp []registry.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "col-1", resp[0].ID)
	assert.Equal(t, 3, resp[0].ChunkCount)
}

func TestListCollections_Empty(t *testing.T) {
	srv := newServer(t, &stubRAG{summaries: []registry.Summary{}})

	rec := doJSON(t, srv, nethttp.MethodGet, "/api/collections", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDeleteCollection(t *testing.T) {
	stub := &stubRAG{}
	srv := newServer(t, stub)

	rec := doJSON(t, srv, nethttp.MethodDelete, "/api/collections/col-1", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "col-1", stub.deletedID)
}

func TestDeleteCollection_NotFound(t *testing.T) {
	stub := &stubRAG{deleteErr: registry.ErrNotFound}
	srv := newServer(t, stub)

	rec := doJSON(t, srv, nethttp.MethodDelete, "/api/collections/missing", nil)
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)

	var errBody docchathttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, docchathttp.KindNotFound, errBody.Error.Kind)
}

func TestRAGChat_Streams(t *testing.T) {
	stub := &stubRAG{fragments: []string{"The answer", " is 30 days."}}
	srv := newServer(t, stub)

	rec := doJSON(t, srv, nethttp.MethodPost, "/api/rag-chat", map[string]any{
		"collection_id": "col-1",
		"user_message":  "How many days notice?",
		"api_key":       "sk-test",
		"model":         "gpt-4.1-mini",
	})

	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "The answer is 30 days.", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	assert.Equal(t, "col-1", stub.lastAnswer.CollectionID)
	assert.Equal(t, "How many days notice?", stub.lastAnswer.Question)
	assert.True(t, stub.lastAnswer.UseRetrieval, "use_rag defaults to true")
}

func TestRAGChat_RetrievalToggle(t *testing.T) {
	stub := &stubRAG{fragments: []string{"hello"}}
	srv := newServer(t, stub)

	doJSON(t, srv, nethttp.MethodPost, "/api/rag-chat", map[string]any{
		"collection_id": "col-1",
		"user_message":  "hi",
		"api_key":       "sk-test",
		"use_rag":       false,
	})
	assert.False(t, stub.lastAnswer.UseRetrieval)
}

func TestRAGChat_NotFoundBeforeStream(t *testing.T) {
	stub := &stubRAG{answerErr: registry.ErrNotFound}
	srv := newServer(t, stub)

	rec := doJSON(t, srv, nethttp.MethodPost, "/api/rag-chat", map[string]any{
		"collection_id": "missing",
		"user_message":  "hi",
		"api_key":       "sk-test",
	})
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
}

func TestRAGChat_EmptyQuestion(t *testing.T) {
	stub := &stubRAG{answerErr: rag.ErrEmptyQuestion}
	srv := newServer(t, stub)

	rec := doJSON(t, srv, nethttp.MethodPost, "/api/rag-chat", map[string]any{
		"collection_id": "col-1",
		"user_message":  "",
		"api_key":       "sk-test",
	})
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
}

func TestRAGChat_ProviderError(t *testing.T) {
	stub := &stubRAG{answerErr: embeddings.ErrProvider}
	srv := newServer(t, stub)

	rec := doJSON(t, srv, nethttp.MethodPost, "/api/rag-chat", map[string]any{
		"collection_id": "col-1",
		"user_message":  "hi",
		"api_key":       "sk-test",
	})
	assert.Equal(t, nethttp.StatusBadGateway, rec.Code)

	var errBody docchathttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, docchathttp.KindProviderError, errBody.Error.Kind)
}

func TestChat_Streams(t *testing.T) {
	stub := &stubRAG{fragments: []string{"Hello", " there."}}
	srv := newServer(t, stub)

	rec := doJSON(t, srv, nethttp.MethodPost, "/api/chat", map[string]any{
		"user_message": "Hi",
		"api_key":      "sk-test",
	})
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "Hello there.", rec.Body.String())
	assert.Equal(t, "Hi", stub.lastQuestion)
}

func TestChat_ForwardsDeveloperMessage(t *testing.T) {
	stub := &stubRAG{fragments: []string{"Arr."}}
	srv := newServer(t, stub)

	rec := doJSON(t, srv, nethttp.MethodPost, "/api/chat", map[string]any{
		"developer_message": "You are a pirate",
		"user_message":      "hi",
		"api_key":           "sk-test",
	})
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "You are a pirate", stub.lastDeveloperMessage)
	assert.Equal(t, "hi", stub.lastQuestion)
}

func TestBodyLimit(t *testing.T) {
	srv, err := docchathttp.NewServer(&stubRAG{}, zap.NewNop(), &docchathttp.Config{
		Host:      "0.0.0.0",
		Port:      8000,
		BodyLimit: "1K",
	})
	require.NoError(t, err)

	body, contentType := multipartUpload(t, map[string]string{"api_key": "sk-test"},
		"big.txt", strings.Repeat("x", 2048))
	req := httptest.NewRequest(nethttp.MethodPost, "/api/upload-document", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, nethttp.StatusRequestEntityTooLarge, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, &stubRAG{})

	rec := doJSON(t, srv, nethttp.MethodGet, "/metrics", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
