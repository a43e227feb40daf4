package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/events"
	"github.com/noah-isme/grosir-api/internal/order"
)

// Enqueuer is the part of asynq.Client the notifier uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EmailNotifier turns order events into queued customer emails.
type EmailNotifier struct {
	Queue Enqueuer
	// CC receives a copy of every customer email, typically the store mailbox.
	CC           string
	TopicToggles map[string]bool
	MaxRetry     int
	Logger       zerolog.Logger
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(ctx context.Context, event events.Event) error {
	if n.Queue == nil {
		return nil
	}
	kind, ok := KindFor(event.Topic)
	if !ok {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	var o order.Order
	if err := event.Decode(&o); err != nil {
		return fmt.Errorf("email notify: decode order: %w", err)
	}
	to := strings.TrimSpace(o.Customer.Email)
	if to == "" {
		return nil
	}
	subject, html, text, err := Render(kind, o)
	if err != nil {
		return fmt.Errorf("email notify: %w", err)
	}
	msg := common.Email{
		To:      to,
		CC:      n.CC,
		Subject: subject,
		HTML:    html,
		Text:    text,
		Params: map[string]string{
			"order_id":      o.Number,
			"customer_name": o.Customer.Name,
			"order_total":   "$" + o.Total.StringFixed(2),
			"order_date":    o.CreatedAt.Format("01/02/2006"),
		},
	}
	task, err := NewEmailTask(kind, msg)
	if err != nil {
		return err
	}
	retry := n.MaxRetry
	if retry <= 0 {
		retry = 8
	}
	_, err = n.Queue.EnqueueContext(ctx, task,
		asynq.Queue(EmailQueue),
		asynq.MaxRetry(retry),
		asynq.TaskID(event.ID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("email notify: enqueue: %w", err)
	}
	n.Logger.Debug().Str("topic", event.Topic).Str("order_id", o.ID).Str("kind", kind).Msg("email queued")
	return nil
}
