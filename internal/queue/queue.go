package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeCreateContainer = "thread:create_container"

type CreateContainerPayload struct {
	ThreadID int64 `json:"thread_id"`
}

// EnqueueCreation schedules the optimistic container-create attempt. With a
// future publish time the task fires at the scheduled instant; the periodic
// tick remains the authoritative fallback either way.
func EnqueueCreation(asynqClient *asynq.Client, payload CreateContainerPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeCreateContainer, taskPayload)

	if delay < 0 {
		delay = 0
	}
	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	log.Printf("Container creation task scheduled: %+v", payload)
	return nil
}
