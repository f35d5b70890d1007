package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/identity-service/internal/ledger"
	"github.com/eaglebank/identity-service/internal/repository"
	"github.com/eaglebank/identity-service/shared/cqrs"
	"github.com/eaglebank/identity-service/shared/events"
	"github.com/eaglebank/identity-service/shared/faults"
	"github.com/eaglebank/identity-service/shared/models"
	"github.com/eaglebank/identity-service/shared/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UserStore is the user directory used by the debit consumer.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// UserViewCache keeps the read model in step with committed writes.
type UserViewCache interface {
	CacheUserView(ctx context.Context, view *models.UserView) error
	EvictUserView(ctx context.Context, id string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

type DebitRecorder interface {
	RecordDebit(userID string)
}

// DebitCommandService applies DebitGil commands to user balances. Every
// command takes effect at most once per message ID, no matter how often the
// bus delivers it.
type DebitCommandService struct {
	users       UserStore
	views       UserViewCache
	publisher   EventPublisher
	debits      DebitRecorder
	eventStream string
	logger      *zap.Logger
	now         func() time.Time
}

func NewDebitCommandService(
	users UserStore,
	views UserViewCache,
	publisher EventPublisher,
	debits DebitRecorder,
	eventStream string,
	logger *zap.Logger,
) *DebitCommandService {
	return &DebitCommandService{
		users:       users,
		views:       views,
		publisher:   publisher,
		debits:      debits,
		eventStream: eventStream,
		logger:      logger.With(zap.String("component", "debit-gil-consumer")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleDebitGil is the stream subscriber handler for DebitGil commands.
func (s *DebitCommandService) HandleDebitGil(ctx context.Context, event events.Event) error {
	if event.Type != events.DebitGilType {
		return faults.NewTerminal(faults.CodeMalformedMessage, fmt.Errorf("unexpected event type %q", event.Type))
	}

	var msg events.DebitGil
	if err := event.Decode(&msg); err != nil {
		return faults.NewTerminal(faults.CodeMalformedMessage, err)
	}
	if err := validation.Struct(msg); err != nil {
		s.logger.Warn("Rejecting invalid debit message", zap.String("messageId", event.ID), zap.Error(err))
		return faults.NewTerminal(faults.CodeInvalidCommand, err)
	}

	return s.DebitGil(ctx, cqrs.DebitGilCommand{
		MessageID:     event.ID,
		UserID:        msg.UserID,
		Gil:           *msg.Gil,
		CorrelationID: msg.CorrelationID,
	})
}

// DebitGil runs load, dedup, apply, persist and publish for one command.
// Returned errors are tagged with faults.Terminal or faults.Transient.
func (s *DebitCommandService) DebitGil(ctx context.Context, cmd cqrs.DebitGilCommand) error {
	log := s.logger.With(
		zap.String("userId", cmd.UserID),
		zap.String("gil", cmd.Gil.String()),
		zap.String("correlationId", cmd.CorrelationID),
		zap.String("messageId", cmd.MessageID),
	)

	if err := validation.Struct(cmd); err != nil {
		log.Warn("Rejecting invalid debit command", zap.Error(err))
		return faults.NewTerminal(faults.CodeInvalidCommand, err)
	}
	if cmd.Gil.IsNegative() {
		log.Warn("Rejecting negative debit")
		return faults.NewTerminal(faults.CodeInvalidCommand, ledger.ErrNegativeAmount)
	}

	log.Info("Debiting gil")

	user, err := s.users.GetByID(ctx, cmd.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		log.Error("Unknown user")
		return faults.NewTerminal(faults.CodeUnknownAccount, fmt.Errorf("user %s: %w", cmd.UserID, err))
	}
	if err != nil {
		return faults.NewTransient(faults.CodeUnavailable, err)
	}

	if ledger.AlreadyApplied(user, cmd.MessageID) {
		log.Info("Debit already applied, replaying completion")
		return s.publish(ctx, gilDebited(cmd))
	}

	next, err := ledger.Debit(user, cmd.Gil, cmd.MessageID)
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		log.Error("Not enough gil to debit", zap.String("balance", user.Gil.String()))
		return faults.NewTerminal(faults.CodeInsufficientFunds, err)
	}
	if err != nil {
		return faults.NewTerminal(faults.CodeInvalidCommand, err)
	}
	next.UpdatedAt = s.now()

	if err := s.users.Update(ctx, next); err != nil {
		switch {
		case errors.Is(err, repository.ErrConcurrentUpdate):
			log.Warn("Concurrent update, debit will be retried", zap.Error(err))
			return faults.NewTransient(faults.CodeConflict, err)
		case errors.Is(err, repository.ErrUserNotFound):
			log.Error("User removed before debit was written")
			if evictErr := s.views.EvictUserView(ctx, cmd.UserID); evictErr != nil {
				log.Warn("Failed to evict user view", zap.Error(evictErr))
			}
			return faults.NewTerminal(faults.CodeUnknownAccount, err)
		default:
			return faults.NewTransient(faults.CodeUnavailable, err)
		}
	}

	// From here on the debit is committed: a redelivery only replays GilDebited.
	s.debits.RecordDebit(next.ID)

	if err := s.views.CacheUserView(ctx, models.NewUserView(next)); err != nil {
		log.Warn("Failed to refresh user view", zap.Error(err))
	}

	if err := s.publish(ctx, gilDebited(cmd), userUpdated(next)); err != nil {
		log.Warn("Failed to publish debit outcome", zap.Error(err))
		return err
	}

	log.Info("Gil debited", zap.String("balance", next.Gil.String()))
	return nil
}

type outcome struct {
	eventType string
	data      any
}

func gilDebited(cmd cqrs.DebitGilCommand) outcome {
	return outcome{events.GilDebitedType, events.GilDebited{CorrelationID: cmd.CorrelationID}}
}

func userUpdated(u *models.User) outcome {
	return outcome{events.UserUpdatedType, events.UserUpdated{UserID: u.ID, Email: u.Email, Gil: u.Gil}}
}

// publish hands every outcome to the bus concurrently and returns only after
// all of them were accepted or failed. One failure does not cancel the rest.
func (s *DebitCommandService) publish(ctx context.Context, outcomes ...outcome) error {
	var g errgroup.Group
	for _, o := range outcomes {
		o := o
		g.Go(func() error {
			return s.publisher.Publish(ctx, s.eventStream, o.eventType, o.data)
		})
	}
	if err := g.Wait(); err != nil {
		return faults.NewTransient(faults.CodePublishFailed, err)
	}
	return nil
}
