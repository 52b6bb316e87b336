package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ordering_assistant/pkg"

	"github.com/bytedance/sonic"
)

// Backend generates a reply from a remote service
type Backend interface {
	Generate(ctx context.Context, req RemoteRequest) (pkg.AssistantResponse, error)
	Name() string
}

// ContextMessage is one history entry on the wire
type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RemoteRequest is the body posted to the remote endpoint
type RemoteRequest struct {
	Message    string           `json:"message"`
	Context    []ContextMessage `json:"context"`
	SessionKey string           `json:"sessionKey"`
}

// NewRemoteRequest snapshots the session history into a request
func NewRemoteRequest(message string, sc pkg.SessionContext) RemoteRequest {
	msgs := sc.Messages()
	history := make([]ContextMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, ContextMessage{Role: string(m.Role), Content: m.Content})
	}
	return RemoteRequest{Message: message, Context: history, SessionKey: sc.Key}
}

type remoteReply struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

// Failure kinds of a remote call
const (
	KindTransport = "transport"
	KindTimeout   = "timeout"
	KindStatus    = "status"
	KindMalformed = "malformed"
	KindEmpty     = "empty"
)

// RemoteBackendError describes why a remote call produced no usable reply
type RemoteBackendError struct {
	Kind       string
	StatusCode int
	Err        error
}

func (e *RemoteBackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote backend %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote backend %s error: %v", e.Kind, e.Err)
}

func (e *RemoteBackendError) Unwrap() error {
	return e.Err
}

func transportError(err error) *RemoteBackendError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteBackendError{Kind: KindTimeout, Err: err}
	}
	return &RemoteBackendError{Kind: KindTransport, Err: err}
}

// maxReplyBytes caps how much of a reply body is read; a longer body is
// cut off and fails to decode
const maxReplyBytes = 1 << 20

// HTTPBackend posts the request as JSON to a fixed endpoint
type HTTPBackend struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewHTTPBackend creates a backend with a per-call timeout. A nil client
// uses a fresh http.Client.
func NewHTTPBackend(endpoint string, timeout time.Duration, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPBackend{endpoint: endpoint, timeout: timeout, client: client}
}

func (b *HTTPBackend) Name() string {
	return "http"
}

// Generate posts the request and decodes {message, suggestions}
func (b *HTTPBackend) Generate(ctx context.Context, req RemoteRequest) (pkg.AssistantResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	body, err := sonic.Marshal(req)
	if err != nil {
		return pkg.AssistantResponse{}, &RemoteBackendError{Kind: KindMalformed, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return pkg.AssistantResponse{}, &RemoteBackendError{Kind: KindTransport, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return pkg.AssistantResponse{}, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return pkg.AssistantResponse{}, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pkg.AssistantResponse{}, &RemoteBackendError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var reply remoteReply
	if err := sonic.Unmarshal(data, &reply); err != nil {
		return pkg.AssistantResponse{}, &RemoteBackendError{Kind: KindMalformed, StatusCode: resp.StatusCode, Err: err}
	}
	if strings.TrimSpace(reply.Message) == "" {
		return pkg.AssistantResponse{}, &RemoteBackendError{Kind: KindEmpty, StatusCode: resp.StatusCode, Err: errors.New("reply has no message")}
	}

	suggestions := reply.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return pkg.AssistantResponse{
		Message:     reply.Message,
		Suggestions: suggestions,
		Source:      pkg.SourceRemote,
	}, nil
}
