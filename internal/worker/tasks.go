package worker

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeSettleMatch = "settle-match"
	TypeVoidMatch   = "void-match"
)

type MatchTaskPayload struct {
	MatchId int `json:"match_id"`
}

func NewSettleMatchTask(matchID int) (*asynq.Task, error) {
	return newMatchTask(TypeSettleMatch, matchID)
}

func NewVoidMatchTask(matchID int) (*asynq.Task, error) {
	return newMatchTask(TypeVoidMatch, matchID)
}

func newMatchTask(typename string, matchID int) (*asynq.Task, error) {
	data, err := json.Marshal(MatchTaskPayload{MatchId: matchID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, data), nil
}

// TaskID is the dedupe key of a match task within one dispatch slot.
// asynq rejects the same id while a task holding it is queued, retrying or
// archived, so the slot lets a later sweep try again.
func TaskID(typename string, matchID int, slot int64) string {
	return fmt.Sprintf("%s:%d:%d", typename, matchID, slot)
}
