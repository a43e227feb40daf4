package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/obs"
)

const (
	// TypeEmailSend is the asynq task type for transactional email.
	TypeEmailSend = "email:send"
	// EmailQueue is the asynq queue email tasks run on.
	EmailQueue = "email"
)

type emailTask struct {
	Kind  string       `json:"kind"`
	Email common.Email `json:"email"`
}

// NewEmailTask encodes an email for delivery by the worker.
func NewEmailTask(kind string, email common.Email) (*asynq.Task, error) {
	payload, err := json.Marshal(emailTask{Kind: kind, Email: email})
	if err != nil {
		return nil, fmt.Errorf("encode email task: %w", err)
	}
	return asynq.NewTask(TypeEmailSend, payload), nil
}

// TaskHandler delivers queued emails.
type TaskHandler struct {
	Sender common.EmailSender
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var task emailTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		obs.RecordEmailTask("unknown", "invalid")
		return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
	}
	if task.Email.To == "" {
		obs.RecordEmailTask(task.Kind, "invalid")
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}
	if err := h.Sender.Send(ctx, task.Email); err != nil {
		obs.RecordEmailTask(task.Kind, "error")
		h.Logger.Warn().Err(err).Str("kind", task.Kind).Msg("send email")
		return err
	}
	obs.RecordEmailTask(task.Kind, "sent")
	return nil
}
