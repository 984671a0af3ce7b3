package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskDailySync = "ingest.daily_sync"

// DailySyncPayload carries the trigger source for audit logging.
type DailySyncPayload struct {
	Trigger string `json:"trigger"`
}

func NewDailySyncTask(payload DailySyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailySync, data), nil
}

func ParseDailySyncPayload(task *asynq.Task) (DailySyncPayload, error) {
	var payload DailySyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DailySyncPayload{}, err
	}
	return payload, nil
}
