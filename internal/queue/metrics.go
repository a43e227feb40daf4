package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	// QueueDepth tracks tasks waiting to run per queue.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Pending tasks per queue",
		},
		[]string{"queue"},
	)
	// QueueDLQSize tracks archived (dead) tasks per queue.
	QueueDLQSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_dlq_size",
			Help: "Archived tasks per queue",
		},
		[]string{"queue"},
	)
	// QueueLatency tracks the age of the oldest pending task per queue.
	QueueLatency = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_latency_seconds",
			Help: "Age of the oldest pending task per queue",
		},
		[]string{"queue"},
	)
)

// MustRegister adds the queue gauges to reg.
func MustRegister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{QueueDepth, QueueDLQSize, QueueLatency} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}

// InfoSource reports queue statistics.
type InfoSource interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Sampler refreshes the queue gauges on an interval.
type Sampler struct {
	Source   InfoSource
	Queues   []string
	Interval time.Duration
	Logger   zerolog.Logger
}

// SampleOnce reads every queue once. Queues that do not exist yet are skipped.
func (s Sampler) SampleOnce() {
	for _, name := range s.Queues {
		info, err := s.Source.GetQueueInfo(name)
		if err != nil {
			if !errors.Is(err, asynq.ErrQueueNotFound) {
				s.Logger.Warn().Err(err).Str("queue", name).Msg("sample queue")
			}
			continue
		}
		observe(info)
	}
}

// Run samples until ctx is cancelled.
func (s Sampler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.SampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SampleOnce()
		}
	}
}
