package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// eventNamespace derives stable event ids from transition ids, so a batch
// that is re-sent after a failed commit carries the same event_id.
var eventNamespace = uuid.MustParse("6f1c7d52-3b8e-4a55-9f0e-2a4d8c1b7e90")

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	Topic     string
	PollEvery time.Duration
	BatchSize int
}

type Publisher struct {
	store  Store
	writer MessageWriter
	log    *zap.Logger
	cfg    PublisherConfig
}

func NewPublisher(store Store, writer MessageWriter, log *zap.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{store: store, writer: writer, log: log, cfg: cfg}
}

// NewKafkaWriter builds the writer used in production. Messages of one
// appointment share a key and therefore a partition.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// TransitionEvent is the JSON value of each published message.
type TransitionEvent struct {
	EventID       string    `json:"event_id"`
	TransitionID  int64     `json:"transition_id"`
	AppointmentID int64     `json:"appointment_id"`
	Event         string    `json:"event"`
	State         string    `json:"state"`
	ActorID       *int64    `json:"actor_id,omitempty"`
	ProviderID    int64     `json:"provider_id"`
	RequesterID   int64     `json:"requester_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func EventID(transitionID int64) string {
	return uuid.NewSHA1(eventNamespace, []byte(strconv.FormatInt(transitionID, 10))).String()
}

// Run drains the backlog at startup and then on every tick until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	p.runOnce(ctx)

	ticker := time.NewTicker(p.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Publisher) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := p.Drain(runCtx)
	if err != nil {
		p.log.Error("outbox publish failed", zap.Error(err), zap.Int("published", n))
		return
	}
	if n > 0 {
		p.log.Info("relay run complete", zap.Int("published", n), zap.Duration("took", time.Since(start)))
	}
}

// Drain publishes batches until none are left or one fails, and returns the
// number of transitions sent.
func (p *Publisher) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := p.PublishBatch(ctx)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			return total, nil
		}
	}
}

// PublishBatch publishes up to BatchSize unpublished transitions in id order
// and returns how many were sent.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	published := 0
	err := p.store.WithUnpublished(ctx, p.cfg.BatchSize, func(ctx context.Context, records []Record) error {
		msgs := make([]kafka.Message, 0, len(records))
		for _, r := range records {
			msg, err := p.message(r)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write messages: %w", err)
		}
		published = len(msgs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		p.log.Debug("published transitions", zap.Int("count", published), zap.String("topic", p.cfg.Topic))
	}
	return published, nil
}

func (p *Publisher) message(r Record) (kafka.Message, error) {
	eventID := EventID(r.ID)
	value, err := json.Marshal(TransitionEvent{
		EventID:       eventID,
		TransitionID:  r.ID,
		AppointmentID: r.AppointmentID,
		Event:         r.Event,
		State:         r.State,
		ActorID:       r.ActorID,
		ProviderID:    r.ProviderID,
		RequesterID:   r.RequesterID,
		OccurredAt:    r.OccurredAt.UTC(),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode transition %d: %w", r.ID, err)
	}

	return kafka.Message{
		Topic: p.cfg.Topic,
		Key:   []byte(strconv.FormatInt(r.AppointmentID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte("appointment." + r.Event)},
		},
	}, nil
}
