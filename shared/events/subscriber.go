package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eaglebank/identity-service/shared/faults"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Handler func(ctx context.Context, event Event) error

// Subscriber consumes a stream through a consumer group. A message is acked
// only after the handler succeeded or the message was written to the fault
// stream; anything else stays pending and is reclaimed once idle for
// ClaimMinIdle.
type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	faultStream   string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	concurrency   int
	claimMinIdle  time.Duration
	retry         RetryPolicy
	faults        *Publisher
	logger        *zap.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	FaultStream   string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	Concurrency   int
	ClaimMinIdle  time.Duration
	Retry         RetryPolicy
	Logger        *zap.Logger
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.FaultStream == "" {
		config.FaultStream = config.Stream + ".faults"
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		faultStream:   config.FaultStream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		concurrency:   config.Concurrency,
		claimMinIdle:  config.ClaimMinIdle,
		retry:         config.Retry,
		faults:        NewPublisher(client),
		logger: config.Logger.With(
			zap.String("component", "subscriber"),
			zap.String("stream", config.Stream),
			zap.String("group", config.Group),
			zap.String("consumer", config.Consumer),
		),
	}
}

// Start blocks until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}

	s.logger.Info("Subscriber started")

	var lastClaim time.Time
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Subscriber stopping")
			return ctx.Err()
		default:
		}

		if s.claimMinIdle > 0 && time.Since(lastClaim) >= s.claimMinIdle {
			if err := s.reclaimStale(ctx); err != nil {
				s.logger.Warn("Error reclaiming stale messages", zap.Error(err))
			}
			lastClaim = time.Now()
		}

		if err := s.readMessages(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("Error reading messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (s *Subscriber) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (s *Subscriber) readMessages(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		s.dispatch(ctx, stream.Messages)
	}
	return nil
}

// reclaimStale takes over entries whose consumer never acked them within
// claimMinIdle, e.g. after a crash.
func (s *Subscriber) reclaimStale(ctx context.Context) error {
	start := "0-0"
	for {
		messages, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   s.stream,
			Group:    s.group,
			Consumer: s.consumer,
			MinIdle:  s.claimMinIdle,
			Start:    start,
			Count:    s.batchSize,
		}).Result()
		if err != nil {
			return fmt.Errorf("failed to claim pending messages: %w", err)
		}

		if len(messages) > 0 {
			s.logger.Info("Reclaimed stale messages", zap.Int("count", len(messages)))
			s.dispatch(ctx, messages)
		}
		if next == "0-0" || len(messages) == 0 {
			return nil
		}
		start = next
	}
}

// dispatch runs the batch on at most s.concurrency goroutines and waits for
// all of them.
func (s *Subscriber) dispatch(ctx context.Context, messages []redis.XMessage) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, message := range messages {
		message := message
		g.Go(func() error {
			if err := s.process(ctx, message); err != nil {
				s.logger.Warn("Message left pending", zap.String("streamId", message.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// process handles a single entry. A nil return means the entry was acked.
func (s *Subscriber) process(ctx context.Context, message redis.XMessage) error {
	event, err := decodeMessage(message)
	if err != nil {
		return s.fail(ctx, message, Event{ID: message.ID}, faults.NewTerminal(faults.CodeMalformedMessage, err), 0)
	}

	attempts, err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.handler(ctx, event)
	})
	if err == nil {
		return s.ack(ctx, message.ID)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d attempts: %w", attempts, err)
	}
	return s.fail(ctx, message, event, err, attempts)
}

// fail routes the message to the fault stream and acks it. If the fault
// cannot be written the entry stays pending.
func (s *Subscriber) fail(ctx context.Context, message redis.XMessage, event Event, cause error, attempts int) error {
	kind := faults.KindOf(cause)
	s.logger.Error("Routing message to fault stream",
		zap.String("messageId", event.ID),
		zap.String("streamId", message.ID),
		zap.String("type", event.Type),
		zap.Stringer("kind", kind),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)

	fault := Fault{
		MessageID: event.ID,
		StreamID:  message.ID,
		Kind:      kind.String(),
		Code:      faults.CodeOf(cause),
		Error:     cause.Error(),
		Attempts:  attempts,
		Event:     event,
		Timestamp: time.Now().UTC(),
	}
	if err := s.faults.publishFault(ctx, s.faultStream, fault); err != nil {
		return fmt.Errorf("failed to route fault: %w", err)
	}
	return s.ack(ctx, message.ID)
}

func (s *Subscriber) ack(ctx context.Context, id string) error {
	if err := s.client.XAck(ctx, s.stream, s.group, id).Err(); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", id, err)
	}
	return nil
}

func decodeMessage(message redis.XMessage) (Event, error) {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return Event{}, fmt.Errorf("invalid message format")
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	// Entries without an envelope ID fall back to the stream entry ID, which
	// is also stable while the entry is pending.
	if event.ID == "" {
		event.ID = message.ID
	}
	return event, nil
}
