package assistant

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"ordering_assistant/internal/nlu"
	"ordering_assistant/internal/nodes"
	"ordering_assistant/internal/storage"
	"ordering_assistant/pkg"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newOrchestrator(t *testing.T, backend Backend) (*Orchestrator, *storage.ContextStore) {
	t.Helper()
	store := storage.NewContextStore(storage.ContextStoreConfig{MaxContextTurns: 10}, nil)
	return newOrchestratorWithStore(t, backend, store), store
}

func newOrchestratorWithStore(t *testing.T, backend Backend, store SessionStore) *Orchestrator {
	t.Helper()
	processor, err := nlu.NewProcessor(nlu.ProcessorConfig{EnableEntityExtraction: true, EnableIntentRecognition: true})
	require.NoError(t, err)
	generator := nodes.NewResponseGenerator(nil)
	pipeline, err := nodes.NewPipeline(context.Background(), processor, generator)
	require.NoError(t, err)

	return NewOrchestrator(OrchestratorConfig{
		Store:     store,
		Backend:   backend,
		Local:     pipeline,
		Generator: generator,
		NLU:       processor,
	})
}

// funcBackend adapts a function to Backend
type funcBackend func(ctx context.Context, req RemoteRequest) (pkg.AssistantResponse, error)

func (f funcBackend) Generate(ctx context.Context, req RemoteRequest) (pkg.AssistantResponse, error) {
	return f(ctx, req)
}

func (f funcBackend) Name() string {
	return "func"
}

// racingStore lets another writer append a pair right before each of the
// first `races` appends made through it
type racingStore struct {
	*storage.ContextStore
	races int
	calls int
}

func (r *racingStore) AppendTurn(ctx context.Context, key string, user, assistant pkg.Turn, expectedSeq uint64) (uint64, error) {
	if r.calls < r.races {
		r.calls++
		seq := r.ContextStore.GetContext(key).SequenceNumber
		_, err := r.ContextStore.AppendTurn(ctx, key,
			pkg.UserTurn("competing", time.Now()), pkg.AssistantTurn("competing reply", time.Now()), seq)
		if err != nil {
			return 0, err
		}
	}
	return r.ContextStore.AppendTurn(ctx, key, user, assistant, expectedSeq)
}

func TestProcessMessageUsesRemoteReply(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"remote hi","suggestions":["x"]}`))
	})
	o, store := newOrchestrator(t, NewHTTPBackend(srv.URL, time.Second, nil))

	resp := o.ProcessMessage(context.Background(), "你好", "s1")
	assert.Equal(t, "remote hi", resp.Message)
	assert.Equal(t, []string{"x"}, resp.Suggestions)

	sc := store.GetContext("s1")
	require.Len(t, sc.Turns, 2)
	assert.Equal(t, schema.User, sc.Turns[0].Role)
	assert.Equal(t, "你好", sc.Turns[0].Content)
	assert.Equal(t, "remote hi", sc.Turns[1].Content)
	assert.EqualValues(t, 1, o.Status().RemoteReplies)
}

func TestProcessMessageFallsBackOnFailure(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	o, store := newOrchestrator(t, NewHTTPBackend(srv.URL, time.Second, nil))

	resp := o.ProcessMessage(context.Background(), "我要宫保鸡丁", "s1")
	assert.NotEmpty(t, resp.Message)
	assert.Contains(t, resp.Message, "宫保鸡丁")
	assert.Equal(t, pkg.SourceFallback, resp.Source)

	sc := store.GetContext("s1")
	require.Len(t, sc.Turns, 2)
	assert.Equal(t, resp.Message, sc.Turns[1].Content)

	status := o.Status()
	assert.EqualValues(t, 1, status.FallbackReplies)
	assert.EqualValues(t, 0, status.RemoteReplies)
	assert.Equal(t, "http", status.Backend)
	assert.Contains(t, status.NLU.SupportedIntents, nlu.IntentOrderFood)
}

func TestProcessMessageWithoutBackend(t *testing.T) {
	o, _ := newOrchestrator(t, nil)

	resp := o.ProcessMessage(context.Background(), "能看看菜单吗", "s1")
	assert.Contains(t, resp.Message, "招牌菜")
	assert.Equal(t, "none", o.Status().Backend)
}

func TestProcessMessageBlankIsNotRecorded(t *testing.T) {
	o, store := newOrchestrator(t, nil)

	resp := o.ProcessMessage(context.Background(), "   ", "s1")
	assert.Contains(t, resp.Message, "YYC³ AI助手")
	assert.Zero(t, store.Len())
}

func TestProcessMessageCancelledCallerStillRecords(t *testing.T) {
	o, store := newOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := o.ProcessMessage(ctx, "你好", "s1")
	assert.NotEmpty(t, resp.Message)
	assert.Len(t, store.GetContext("s1").Turns, 2)
}

func TestProcessMessageConcurrentCallsBothRecorded(t *testing.T) {
	var mu sync.Mutex
	arrived := 0
	both := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrived++
		if arrived == 2 {
			close(both)
		}
		mu.Unlock()
		select {
		case <-both:
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	o, store := newOrchestrator(t, NewHTTPBackend(srv.URL, 5*time.Second, nil))

	var g errgroup.Group
	for _, msg := range []string{"第一条", "第二条"} {
		g.Go(func() error {
			o.ProcessMessage(context.Background(), msg, "s1")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sc := store.GetContext("s1")
	assert.Len(t, sc.Turns, 4)
	assert.EqualValues(t, 2, sc.SequenceNumber)
	assert.EqualValues(t, 0, o.Status().DroppedWrites)
}

func TestSessionOperations(t *testing.T) {
	o, _ := newOrchestrator(t, nil)

	_, err := o.SessionStats("missing")
	require.ErrorIs(t, err, pkg.ErrSessionNotFound)

	require.NoError(t, o.SetSystemPrompt("s1", "只说中文"))
	o.ProcessMessage(context.Background(), "你好", "s1")

	stats, err := o.SessionStats("s1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.MessageCount)
	assert.EqualValues(t, 1, stats.SequenceNumber)

	require.NoError(t, o.ClearSession(context.Background(), "s1"))
	_, err = o.SessionStats("s1")
	require.ErrorIs(t, err, pkg.ErrSessionNotFound)

	transcript, err := o.Transcript(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, transcript)
}

func TestProcessMessageRetriesOneConflict(t *testing.T) {
	store := &racingStore{
		ContextStore: storage.NewContextStore(storage.ContextStoreConfig{MaxContextTurns: 20}, nil),
		races:        1,
	}
	o := newOrchestratorWithStore(t, nil, store)

	o.ProcessMessage(context.Background(), "你好", "s1")

	sc := store.GetContext("s1")
	require.Len(t, sc.Turns, 4)
	assert.Equal(t, "competing", sc.Turns[0].Content)
	assert.Equal(t, "你好", sc.Turns[2].Content)
	assert.EqualValues(t, 2, sc.SequenceNumber)
	assert.Zero(t, o.Status().DroppedWrites)
}

func TestProcessMessageDropsAfterSecondConflict(t *testing.T) {
	store := &racingStore{
		ContextStore: storage.NewContextStore(storage.ContextStoreConfig{MaxContextTurns: 20}, nil),
		races:        2,
	}
	o := newOrchestratorWithStore(t, nil, store)

	resp := o.ProcessMessage(context.Background(), "你好", "s1")
	assert.NotEmpty(t, resp.Message)

	sc := store.GetContext("s1")
	require.Len(t, sc.Turns, 4)
	for _, turn := range sc.Turns {
		assert.NotEqual(t, "你好", turn.Content)
	}
	assert.EqualValues(t, 2, sc.SequenceNumber)
	assert.EqualValues(t, 1, o.Status().DroppedWrites)
}

func TestProcessMessageConcurrentSequenceMatchesPairs(t *testing.T) {
	const callers = 5
	var mu sync.Mutex
	arrived := 0
	all := make(chan struct{})
	backend := funcBackend(func(ctx context.Context, req RemoteRequest) (pkg.AssistantResponse, error) {
		mu.Lock()
		arrived++
		if arrived == callers {
			close(all)
		}
		mu.Unlock()
		<-all
		return pkg.AssistantResponse{Message: "ok " + req.Message}, nil
	})
	store := storage.NewContextStore(storage.ContextStoreConfig{MaxContextTurns: 20}, nil)
	o := newOrchestratorWithStore(t, backend, store)

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			o.ProcessMessage(context.Background(), fmt.Sprintf("消息%d", i), "s1")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sc := store.GetContext("s1")
	pairs := len(sc.Turns) / 2
	assert.EqualValues(t, pairs, sc.SequenceNumber)
	assert.EqualValues(t, callers, int64(pairs)+o.Status().DroppedWrites)
	for i := 0; i < len(sc.Turns); i += 2 {
		assert.Equal(t, schema.User, sc.Turns[i].Role)
		assert.Equal(t, "ok "+sc.Turns[i].Content, sc.Turns[i+1].Content)
	}
}

func TestProcessMessageCancelledCallerSupersededIsDropped(t *testing.T) {
	slowEntered := make(chan struct{})
	backend := funcBackend(func(ctx context.Context, req RemoteRequest) (pkg.AssistantResponse, error) {
		if req.Message == "慢" {
			close(slowEntered)
			<-ctx.Done()
			return pkg.AssistantResponse{}, ctx.Err()
		}
		return pkg.AssistantResponse{Message: "fast reply"}, nil
	})
	o, store := newOrchestrator(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.ProcessMessage(ctx, "慢", "s1")
	}()

	<-slowEntered
	o.ProcessMessage(context.Background(), "快", "s1")
	cancel()
	<-done

	sc := store.GetContext("s1")
	require.Len(t, sc.Turns, 2)
	assert.Equal(t, "快", sc.Turns[0].Content)
	assert.Equal(t, "fast reply", sc.Turns[1].Content)
	assert.EqualValues(t, 1, sc.SequenceNumber)
	assert.EqualValues(t, 1, o.Status().DroppedWrites)
}

func TestClearDuringRequestDoesNotResurrectSession(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := funcBackend(func(ctx context.Context, req RemoteRequest) (pkg.AssistantResponse, error) {
		if req.Message == "等一下" {
			close(entered)
			<-release
		}
		return pkg.AssistantResponse{Message: "reply"}, nil
	})
	o, store := newOrchestrator(t, backend)
	o.ProcessMessage(context.Background(), "你好", "s1")
	require.EqualValues(t, 1, store.GetContext("s1").SequenceNumber)

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.ProcessMessage(context.Background(), "等一下", "s1")
	}()

	<-entered
	require.NoError(t, o.ClearSession(context.Background(), "s1"))
	close(release)
	<-done

	assert.Zero(t, store.Len())
	_, err := o.SessionStats("s1")
	assert.ErrorIs(t, err, pkg.ErrSessionNotFound)
	assert.EqualValues(t, 1, o.Status().DroppedWrites)
}

func TestUpdateConfig(t *testing.T) {
	o, store := newOrchestrator(t, nil)
	for i := 0; i < 5; i++ {
		o.ProcessMessage(context.Background(), fmt.Sprintf("第%d条", i), "s1")
	}
	require.Len(t, store.GetContext("s1").Turns, 10)

	cfg := o.Config()
	assert.Equal(t, 10, cfg.MaxContextTurns)
	assert.True(t, cfg.EnableIntentRecognition)
	assert.True(t, cfg.EnableEntityExtraction)

	turns, off := 4, false
	cfg, err := o.UpdateConfig(pkg.RuntimeConfigUpdate{MaxContextTurns: &turns, EnableIntentRecognition: &off})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxContextTurns)
	assert.False(t, cfg.EnableIntentRecognition)
	assert.True(t, cfg.EnableEntityExtraction)
	assert.Len(t, store.GetContext("s1").Turns, 4)
	assert.False(t, o.Status().NLU.Features["intent_recognition"])
}

func TestUpdateConfigRejectsTinyBound(t *testing.T) {
	o, store := newOrchestrator(t, nil)

	turns, off := 1, false
	cfg, err := o.UpdateConfig(pkg.RuntimeConfigUpdate{MaxContextTurns: &turns, EnableEntityExtraction: &off})
	var cfgErr *pkg.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "maxContextTurns", cfgErr.Field)

	// nothing applied
	assert.Equal(t, 5, store.MaxPairs())
	assert.True(t, cfg.EnableEntityExtraction)
}
