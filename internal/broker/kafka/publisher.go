package kafka

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"cargoline/internal/broker/messages"
	"cargoline/internal/modules/jobs"
)

// Publisher adapts the producer to the job engine's event sink contract.
// Events are queued and published by a single worker so the topic sees them
// in emission order; publish failures are logged and dropped, the stream is
// observability, not source of truth.
type Publisher struct {
	producer *Producer
	topic    string
	log      *zap.Logger
	events   chan jobs.Event
}

func NewPublisher(producer *Producer, topic string, log *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		log:      log,
		events:   make(chan jobs.Event, 256),
	}
}

func (p *Publisher) JobEvent(e jobs.Event) {
	select {
	case p.events <- e:
	default:
		p.log.Warn("kafka publish queue full, dropping event",
			zap.String("job_id", string(e.JobID)),
			zap.String("kind", string(e.Kind)))
	}
}

// Run drains the queue until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.events:
			p.publish(ctx, e)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, e jobs.Event) {
	msg := messages.JobStatusChanged{
		JobID:      string(e.JobID),
		Kind:       string(e.Kind),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		CustomerID: string(e.CustomerID),
		At:         e.At,
	}
	if e.DriverID != nil {
		d := string(*e.DriverID)
		msg.DriverID = &d
	}
	if e.Location != nil {
		msg.Lat, msg.Lng = &e.Location.Lat, &e.Location.Lng
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn("marshal job status message", zap.Error(err))
		return
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(msg.JobID), raw); err != nil {
		p.log.Warn("publish job status message",
			zap.String("job_id", msg.JobID), zap.Error(err))
	}
}
