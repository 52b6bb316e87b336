package storage

import (
	"context"
	"fmt"
	"time"

	"ordering_assistant/pkg"
)

// TurnLog is an append-only per-session log of turns. Entries carry the
// sequence number the context store assigned to the pair they belong to.
type TurnLog interface {
	Append(ctx context.Context, key string, seq uint64, turns ...pkg.Turn) error
	Load(ctx context.Context, key string) ([]pkg.LoggedTurn, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// NopTurnLog keeps nothing
type NopTurnLog struct{}

func (NopTurnLog) Append(context.Context, string, uint64, ...pkg.Turn) error { return nil }

func (NopTurnLog) Load(context.Context, string) ([]pkg.LoggedTurn, error) { return nil, nil }

func (NopTurnLog) Delete(context.Context, string) error { return nil }

func (NopTurnLog) Close() error { return nil }

func toLogged(seq uint64, turns []pkg.Turn) []pkg.LoggedTurn {
	out := make([]pkg.LoggedTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, pkg.LoggedTurn{Sequence: seq, Turn: t})
	}
	return out
}

// BuildTurnLog opens the durable turn log named by backend
func BuildTurnLog(ctx context.Context, backend, redisURL, sqlitePath, dir string, ttl time.Duration) (TurnLog, error) {
	switch backend {
	case "", "none", "memory":
		return NopTurnLog{}, nil
	case "redis":
		log, err := NewRedisTurnLog(ctx, redisURL, ttl)
		if err != nil {
			return nil, err
		}
		return log, nil
	case "sqlite":
		log, err := NewSQLiteTurnLog(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		return log, nil
	case "file":
		log, err := NewFileTurnLog(dir)
		if err != nil {
			return nil, err
		}
		return log, nil
	default:
		return nil, fmt.Errorf("unknown turn log backend %q", backend)
	}
}
