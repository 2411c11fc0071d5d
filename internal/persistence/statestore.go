package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/equityrun/internal/compliance"
	"github.com/sawpanic/equityrun/internal/execution"
	"github.com/sawpanic/equityrun/internal/risk"
)

// Redis keys for the engine state snapshots.
const (
	keyRiskState = "equityrun:state:risk"
	keyPDTState  = "equityrun:state:pdt"
	keyExecState = "equityrun:state:execution"
)

// StateStore snapshots the engine's mutable state to Redis so a restart
// resumes with the same drawdown, day-trade and slippage history. Loads
// return nil with no error when a snapshot does not exist yet.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore wraps a connected client. A zero ttl keeps snapshots forever.
func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) save(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) load(ctx context.Context, key string, v interface{}) (bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *StateStore) SaveRiskState(ctx context.Context, st *risk.PortfolioRiskState) error {
	return s.save(ctx, keyRiskState, st)
}

func (s *StateStore) LoadRiskState(ctx context.Context) (*risk.PortfolioRiskState, error) {
	st := risk.NewPortfolioRiskState()
	ok, err := s.load(ctx, keyRiskState, st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return st, nil
}

func (s *StateStore) SavePDTState(ctx context.Context, st *compliance.PDTState) error {
	return s.save(ctx, keyPDTState, st)
}

func (s *StateStore) LoadPDTState(ctx context.Context) (*compliance.PDTState, error) {
	st := &compliance.PDTState{}
	ok, err := s.load(ctx, keyPDTState, st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return st, nil
}

func (s *StateStore) SaveExecutionState(ctx context.Context, st *execution.ExecutionState) error {
	return s.save(ctx, keyExecState, st)
}

func (s *StateStore) LoadExecutionState(ctx context.Context) (*execution.ExecutionState, error) {
	st := execution.NewExecutionState()
	ok, err := s.load(ctx, keyExecState, st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return st, nil
}

// SaveAll snapshots the three state objects in one call.
func (s *StateStore) SaveAll(ctx context.Context, riskSt *risk.PortfolioRiskState, pdtSt *compliance.PDTState, execSt *execution.ExecutionState) error {
	if err := s.SaveRiskState(ctx, riskSt); err != nil {
		return err
	}
	if err := s.SavePDTState(ctx, pdtSt); err != nil {
		return err
	}
	return s.SaveExecutionState(ctx, execSt)
}
