package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ordering_assistant/pkg"
	"ordering_assistant/src/logger"

	"github.com/cloudwego/eino/schema"
)

// ContextStoreConfig configures the dialogue context store
type ContextStoreConfig struct {
	// MaxContextTurns bounds the history in turns; half of it is the pair bound
	MaxContextTurns int
	// Now is the clock, time.Now when nil
	Now func() time.Time
}

type turnPair struct {
	user      pkg.Turn
	assistant pkg.Turn
}

type session struct {
	mu            sync.Mutex
	system        *pkg.Turn
	pairs         []turnPair
	createdAt     time.Time
	lastUpdatedAt time.Time
	seq           uint64
	// removed is set under mu once the session left the map
	removed bool
}

// ContextStore keeps a bounded turn history per session key.
// Each session has its own lock; the map lock is only held to look up,
// insert or remove sessions.
type ContextStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	maxPairs atomic.Int64
	log      TurnLog
	now      func() time.Time
}

// NewContextStore creates an empty store. A nil turn log disables durability.
func NewContextStore(config ContextStoreConfig, turnLog TurnLog) *ContextStore {
	if turnLog == nil {
		turnLog = NopTurnLog{}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	s := &ContextStore{
		sessions: make(map[string]*session),
		log:      turnLog,
		now:      now,
	}
	s.maxPairs.Store(int64(pairBound(config.MaxContextTurns)))
	return s
}

func pairBound(maxTurns int) int {
	if maxTurns < 2 {
		return 1
	}
	return maxTurns / 2
}

// acquire returns the locked live session for key, creating it if needed
func (s *ContextStore) acquire(key string) *session {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[key]
		if !ok {
			now := s.now()
			sess = &session{createdAt: now, lastUpdatedAt: now}
			s.sessions[key] = sess
		}
		s.mu.Unlock()

		sess.mu.Lock()
		if !sess.removed {
			return sess
		}
		// swept or cleared between lookup and lock
		sess.mu.Unlock()
	}
}

// lookup returns the locked live session for key, or nil
func (s *ContextStore) lookup(key string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	if sess.removed {
		sess.mu.Unlock()
		return nil
	}
	return sess
}

// GetContext returns a copy of the session history. An unknown key yields
// an empty context with sequence 0.
func (s *ContextStore) GetContext(key string) pkg.SessionContext {
	sess := s.lookup(key)
	if sess == nil {
		return pkg.SessionContext{Key: key, Turns: []pkg.Turn{}}
	}
	defer sess.mu.Unlock()

	return pkg.SessionContext{
		Key:            key,
		Turns:          sess.turns(),
		LastUpdatedAt:  sess.lastUpdatedAt,
		SequenceNumber: sess.seq,
	}
}

func (sess *session) turns() []pkg.Turn {
	out := make([]pkg.Turn, 0, 2*len(sess.pairs)+1)
	if sess.system != nil {
		out = append(out, *sess.system)
	}
	for _, p := range sess.pairs {
		out = append(out, p.user, p.assistant)
	}
	return out
}

// AppendTurn appends a user/assistant pair if expectedSeq is current and
// returns the new sequence. With a stale expectedSeq nothing changes and the
// current sequence is returned together with ErrSessionConflict. Only
// expectedSeq 0 may create a session; a non-zero expectedSeq for a missing
// session also wraps ErrSessionGone.
func (s *ContextStore) AppendTurn(ctx context.Context, key string, user, assistant pkg.Turn, expectedSeq uint64) (uint64, error) {
	if err := validatePair(key, user, assistant); err != nil {
		return 0, err
	}

	var sess *session
	if expectedSeq == 0 {
		sess = s.acquire(key)
	} else if sess = s.lookup(key); sess == nil {
		return 0, fmt.Errorf("%w: %w: key %s expected %d", pkg.ErrSessionConflict, pkg.ErrSessionGone, key, expectedSeq)
	}
	defer sess.mu.Unlock()

	if sess.seq != expectedSeq {
		return sess.seq, fmt.Errorf("%w: key %s expected %d, current %d", pkg.ErrSessionConflict, key, expectedSeq, sess.seq)
	}

	sess.pairs = append(sess.pairs, turnPair{user: user, assistant: assistant})
	sess.trim(int(s.maxPairs.Load()))
	sess.seq++
	sess.lastUpdatedAt = s.now()

	// written under the session lock so the log order matches the sequence
	if err := s.log.Append(ctx, key, sess.seq, user, assistant); err != nil {
		logger.Warn().Err(err).Str("session_key", key).Uint64("seq", sess.seq).Msg("turn log append failed")
	}

	return sess.seq, nil
}

func validatePair(key string, user, assistant pkg.Turn) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty session key", pkg.ErrInvalidTurn)
	}
	if user.Role != schema.User {
		return fmt.Errorf("%w: first turn has role %q, want user", pkg.ErrInvalidTurn, user.Role)
	}
	if assistant.Role != schema.Assistant {
		return fmt.Errorf("%w: second turn has role %q, want assistant", pkg.ErrInvalidTurn, assistant.Role)
	}
	if user.Content == "" || assistant.Content == "" {
		return fmt.Errorf("%w: empty content", pkg.ErrInvalidTurn)
	}
	return nil
}

// trim evicts whole pairs from the front until at most maxPairs remain
func (sess *session) trim(maxPairs int) {
	if over := len(sess.pairs) - maxPairs; over > 0 {
		kept := make([]turnPair, maxPairs)
		copy(kept, sess.pairs[over:])
		sess.pairs = kept
	}
}

// AddSystemMessage sets the single leading system turn of the session,
// replacing any previous one. It does not count against the pair bound.
func (s *ContextStore) AddSystemMessage(key, content string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty session key", pkg.ErrInvalidTurn)
	}
	if content == "" {
		return fmt.Errorf("%w: empty system message", pkg.ErrInvalidTurn)
	}

	sess := s.acquire(key)
	defer sess.mu.Unlock()

	now := s.now()
	sess.system = &pkg.Turn{Role: schema.System, Content: content, Timestamp: now}
	sess.lastUpdatedAt = now
	return nil
}

// Clear removes the session and its durable log
func (s *ContextStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	sess, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		sess.mu.Lock()
		sess.removed = true
		sess.mu.Unlock()
	}

	if err := s.log.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete turn log for %s: %w", key, err)
	}
	return nil
}

// SweepExpired removes sessions idle for longer than maxAgeMinutes and
// returns how many were removed. Sessions locked by an in-flight operation
// are skipped, never waited on. Candidates are collected under the read
// lock so lookups keep running during the scan.
func (s *ContextStore) SweepExpired(ctx context.Context, maxAgeMinutes int) int {
	cutoff := s.now().Add(-time.Duration(maxAgeMinutes) * time.Minute)

	candidates := make(map[string]*session)
	s.mu.RLock()
	for key, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastUpdatedAt.Before(cutoff) {
			candidates[key] = sess
		}
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return 0
	}

	var expired []string
	s.mu.Lock()
	for key, sess := range candidates {
		// replaced, or touched since the scan
		if s.sessions[key] != sess || !sess.mu.TryLock() {
			continue
		}
		if sess.lastUpdatedAt.Before(cutoff) {
			sess.removed = true
			delete(s.sessions, key)
			expired = append(expired, key)
		}
		sess.mu.Unlock()
	}
	s.mu.Unlock()

	for _, key := range expired {
		if err := s.log.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Str("session_key", key).Msg("turn log delete failed during sweep")
		}
	}
	return len(expired)
}

// SetMaxContextTurns changes the bound and re-trims every session
func (s *ContextStore) SetMaxContextTurns(maxTurns int) {
	maxPairs := pairBound(maxTurns)
	s.maxPairs.Store(int64(maxPairs))

	s.mu.RLock()
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	for _, sess := range all {
		sess.mu.Lock()
		sess.trim(maxPairs)
		sess.mu.Unlock()
	}
}

// MaxPairs returns the current pair bound
func (s *ContextStore) MaxPairs() int {
	return int(s.maxPairs.Load())
}

// Stats summarizes a live session
func (s *ContextStore) Stats(key string) (pkg.SessionStats, error) {
	sess := s.lookup(key)
	if sess == nil {
		return pkg.SessionStats{}, fmt.Errorf("%w: %s", pkg.ErrSessionNotFound, key)
	}
	defer sess.mu.Unlock()

	count := 2 * len(sess.pairs)
	if sess.system != nil {
		count++
	}
	return pkg.SessionStats{
		Key:             key,
		MessageCount:    count,
		SessionDuration: sess.lastUpdatedAt.Sub(sess.createdAt),
		LastActivity:    sess.lastUpdatedAt,
		SequenceNumber:  sess.seq,
	}, nil
}

// Keys lists the live session keys in sorted order
func (s *ContextStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of live sessions
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Transcript reads the durable log of a session
func (s *ContextStore) Transcript(ctx context.Context, key string) ([]pkg.LoggedTurn, error) {
	return s.log.Load(ctx, key)
}

// Close releases the turn log
func (s *ContextStore) Close() error {
	return s.log.Close()
}
