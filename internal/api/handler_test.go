package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ordering_assistant/internal/assistant"
	"ordering_assistant/internal/nlu"
	"ordering_assistant/internal/nodes"
	"ordering_assistant/internal/storage"
	"ordering_assistant/pkg"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	processor, err := nlu.NewProcessor(nlu.ProcessorConfig{EnableEntityExtraction: true, EnableIntentRecognition: true})
	require.NoError(t, err)
	generator := nodes.NewResponseGenerator(nil)
	pipeline, err := nodes.NewPipeline(context.Background(), processor, generator)
	require.NoError(t, err)

	orch := assistant.NewOrchestrator(assistant.OrchestratorConfig{
		Store:     storage.NewContextStore(storage.ContextStoreConfig{MaxContextTurns: 10}, nil),
		Local:     pipeline,
		Generator: generator,
		NLU:       processor,
	})
	return NewRouter(NewHandler(orch))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsMessage(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/ai/chat", `{"message":"我要宫保鸡丁","sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(SessionKeyHeader))

	var body chatResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Message, "宫保鸡丁")
	assert.NotEmpty(t, body.Suggestions)

	rec = do(t, h, http.MethodGet, "/api/ai/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats pkg.SessionStats
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.MessageCount)
}

func TestChatGeneratesSessionKey(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/ai/chat", `{"message":"你好"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	key := rec.Header().Get(SessionKeyHeader)
	_, err := uuid.Parse(key)
	require.NoError(t, err)

	rec = do(t, h, http.MethodGet, "/api/ai/sessions/"+key, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatFallsBackToUserID(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/ai/chat", `{"message":"你好","userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/ai/sessions/u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatRejectsBadInput(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/ai/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/ai/chat", `{"message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodPost, "/api/ai/chat", `{"message":"你好","sessionId":"s1"}`)

	rec := do(t, h, http.MethodGet, "/api/ai/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status pkg.AssistantStatus
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.ActiveSessions)
	assert.Equal(t, "none", status.Backend)
	assert.EqualValues(t, 1, status.FallbackReplies)
}

func TestDeleteSession(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodPost, "/api/ai/chat", `{"message":"你好","sessionId":"s1"}`)

	rec := do(t, h, http.MethodDelete, "/api/ai/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/ai/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemPromptAndTranscript(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPut, "/api/ai/sessions/s1/system", `{"content":"只说中文"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/ai/sessions/s1/system", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/ai/sessions/s1/transcript", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestConfigRoutes(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/ai/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"maxContextTurns":10,"enableIntentRecognition":true,"enableEntityExtraction":true}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/api/ai/config", `{"maxContextTurns":4,"enableEntityExtraction":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"maxContextTurns":4,"enableIntentRecognition":true,"enableEntityExtraction":false}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/ai/status", "")
	var status pkg.AssistantStatus
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.NLU.Features["entity_extraction"])
}

func TestPutConfigRejectsInvalid(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPut, "/api/ai/config", `{"maxContextTurns":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "maxContextTurns")

	rec = do(t, h, http.MethodPut, "/api/ai/config", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/ai/config", "")
	assert.JSONEq(t, `{"maxContextTurns":10,"enableIntentRecognition":true,"enableEntityExtraction":true}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
