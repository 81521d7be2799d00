package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DefaultWindow matches the default sweep period.
const DefaultWindow = 5 * time.Minute

// Dispatcher hands match settlement to the worker fleet through asynq.
// Dispatches of the same match inside one Window collapse into one task.
type Dispatcher struct {
	Client enqueuer
	Queue  string
	Window time.Duration
	Now    func() time.Time
}

func NewDispatcher(client *asynq.Client, window time.Duration) *Dispatcher {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Dispatcher{Client: client, Queue: "critical", Window: window, Now: time.Now}
}

func (d *Dispatcher) slot() int64 {
	window := d.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return now().UnixNano() / int64(window)
}

func (d *Dispatcher) DispatchSettle(ctx context.Context, matchID int) error {
	task, err := NewSettleMatchTask(matchID)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, matchID)
}

func (d *Dispatcher) DispatchVoid(ctx context.Context, matchID int) error {
	task, err := NewVoidMatchTask(matchID)
	if err != nil {
		return err
	}
	return d.enqueue(ctx, task, matchID)
}

func (d *Dispatcher) enqueue(ctx context.Context, task *asynq.Task, matchID int) error {
	_, err := d.Client.EnqueueContext(ctx, task,
		asynq.TaskID(TaskID(task.Type(), matchID, d.slot())),
		asynq.Queue(d.Queue),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
	)
	// Already dispatched in this slot.
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
