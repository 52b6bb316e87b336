package assistant

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ordering_assistant/pkg"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func requireKind(t *testing.T, err error, kind string) *RemoteBackendError {
	t.Helper()
	require.Error(t, err)
	var rbe *RemoteBackendError
	require.ErrorAs(t, err, &rbe)
	assert.Equal(t, kind, rbe.Kind)
	return rbe
}

func TestHTTPBackendSuccess(t *testing.T) {
	var got RemoteRequest
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, sonic.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"message":"remote hi","suggestions":["a","b"]}`))
	})

	b := NewHTTPBackend(srv.URL, time.Second, nil)
	sc := pkg.SessionContext{Key: "s1", Turns: []pkg.Turn{
		pkg.UserTurn("你好", time.Now()),
		pkg.AssistantTurn("您好", time.Now()),
	}}

	resp, err := b.Generate(context.Background(), NewRemoteRequest("菜单", sc))
	require.NoError(t, err)
	assert.Equal(t, "remote hi", resp.Message)
	assert.Equal(t, []string{"a", "b"}, resp.Suggestions)
	assert.Equal(t, pkg.SourceRemote, resp.Source)

	assert.Equal(t, "菜单", got.Message)
	assert.Equal(t, "s1", got.SessionKey)
	assert.Equal(t, []ContextMessage{{Role: "user", Content: "你好"}, {Role: "assistant", Content: "您好"}}, got.Context)
}

func TestHTTPBackendMissingSuggestions(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})

	resp, err := NewHTTPBackend(srv.URL, time.Second, nil).Generate(context.Background(), RemoteRequest{Message: "x"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Suggestions)
	assert.Empty(t, resp.Suggestions)
}

func TestHTTPBackendServerError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := NewHTTPBackend(srv.URL, time.Second, nil).Generate(context.Background(), RemoteRequest{Message: "x"})
	rbe := requireKind(t, err, KindStatus)
	assert.Equal(t, http.StatusInternalServerError, rbe.StatusCode)
}

func TestHTTPBackendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	_, err := NewHTTPBackend(srv.URL, 50*time.Millisecond, nil).Generate(context.Background(), RemoteRequest{Message: "x"})
	requireKind(t, err, KindTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPBackendMalformedBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := NewHTTPBackend(srv.URL, time.Second, nil).Generate(context.Background(), RemoteRequest{Message: "x"})
	requireKind(t, err, KindMalformed)
}

func TestHTTPBackendOversizedBodyIsCutOff(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"`))
		_, _ = w.Write([]byte(strings.Repeat("a", 2*maxReplyBytes)))
		_, _ = w.Write([]byte(`"}`))
	})

	_, err := NewHTTPBackend(srv.URL, 5*time.Second, nil).Generate(context.Background(), RemoteRequest{Message: "x"})
	requireKind(t, err, KindMalformed)
}

func TestNewRemoteRequestCarriesHistory(t *testing.T) {
	now := time.Now()
	sc := pkg.SessionContext{Key: "s1", Turns: []pkg.Turn{
		{Role: schema.System, Content: "只说中文", Timestamp: now},
		pkg.UserTurn("你好", now),
		pkg.AssistantTurn("您好", now),
	}}

	req := NewRemoteRequest("菜单", sc)
	assert.Equal(t, "菜单", req.Message)
	assert.Equal(t, "s1", req.SessionKey)
	assert.Equal(t, []ContextMessage{
		{Role: "system", Content: "只说中文"},
		{Role: "user", Content: "你好"},
		{Role: "assistant", Content: "您好"},
	}, req.Context)
}

func TestHTTPBackendEmptyMessage(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"  ","suggestions":["a"]}`))
	})

	_, err := NewHTTPBackend(srv.URL, time.Second, nil).Generate(context.Background(), RemoteRequest{Message: "x"})
	requireKind(t, err, KindEmpty)
}

func TestHTTPBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPBackend(url, time.Second, nil).Generate(context.Background(), RemoteRequest{Message: "x"})
	requireKind(t, err, KindTransport)
}
