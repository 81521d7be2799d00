package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"betting-service/internal/services"
)

type Settler interface {
	SettleMatch(ctx context.Context, matchID int) (services.SettlementResult, error)
	VoidMatchBets(ctx context.Context, matchID int) (services.SettlementResult, error)
}

type Worker struct {
	Settlement Settler
	Log        *zap.Logger
}

func NewWorker(settlement Settler, log *zap.Logger) *Worker {
	return &Worker{Settlement: settlement, Log: log}
}

func (w *Worker) HandleSettleMatch(ctx context.Context, t *asynq.Task) error {
	var p MatchTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	res, err := w.Settlement.SettleMatch(ctx, p.MatchId)
	return w.finish(TypeSettleMatch, p.MatchId, res, err)
}

func (w *Worker) HandleVoidMatch(ctx context.Context, t *asynq.Task) error {
	var p MatchTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	res, err := w.Settlement.VoidMatchBets(ctx, p.MatchId)
	return w.finish(TypeVoidMatch, p.MatchId, res, err)
}

// finish maps a settlement run to asynq semantics. Errors that a retry
// cannot fix skip retry; failed selections are retried since only pending
// rows are touched again.
func (w *Worker) finish(task string, matchID int, res services.SettlementResult, err error) error {
	if err != nil {
		if errors.Is(err, services.ErrMatchNotFound) || errors.Is(err, services.ErrMatchNotFinished) {
			w.Log.Warn("match task dropped", zap.String("task", task), zap.Int("match_id", matchID), zap.Error(err))
			return fmt.Errorf("%s match %d: %v: %w", task, matchID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("%s match %d: %w", task, matchID, err)
	}
	w.Log.Info("match task done",
		zap.String("task", task),
		zap.Int("match_id", matchID),
		zap.Int("settled", res.Settled),
		zap.Int("errors", res.Errors),
	)
	if res.Errors > 0 {
		return fmt.Errorf("%s match %d: %d selections failed", task, matchID, res.Errors)
	}
	return nil
}

func NewServeMux(w *Worker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSettleMatch, w.HandleSettleMatch)
	mux.HandleFunc(TypeVoidMatch, w.HandleVoidMatch)
	return mux
}

func NewServer(redisOpt asynq.RedisConnOpt, concurrency int, log *zap.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("task failed", zap.String("type", task.Type()), zap.ByteString("payload", task.Payload()), zap.Error(err))
			}),
		},
	)
}

// StartWorker blocks serving settlement tasks until the process is signalled.
func StartWorker(redisOpt asynq.RedisConnOpt, concurrency int, w *Worker) error {
	srv := NewServer(redisOpt, concurrency, w.Log)
	if err := srv.Run(NewServeMux(w)); err != nil {
		return fmt.Errorf("could not run server: %w", err)
	}
	return nil
}
