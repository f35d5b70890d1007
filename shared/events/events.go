package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	DebitGilType    = "debit.gil"
	GilDebitedType  = "gil.debited"
	UserUpdatedType = "user.updated"
)

// Event is the envelope written to every stream entry. ID is assigned once by
// the publisher and survives redelivery, so consumers can use it as a
// deduplication key.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.ID)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s event: %w", e.Type, err)
	}
	return nil
}

// DebitGil asks the identity service to take gil from a user. Gil is a
// pointer so that a payload without an amount fails validation instead of
// decoding to a zero debit.
type DebitGil struct {
	UserID        string           `json:"userId" validate:"required"`
	Gil           *decimal.Decimal `json:"gil" validate:"required"`
	CorrelationID string           `json:"correlationId" validate:"required"`
}

// GilDebited tells the originating workflow that the debit is committed.
type GilDebited struct {
	CorrelationID string `json:"correlationId"`
}

// UserUpdated is the general account-changed notification.
type UserUpdated struct {
	UserID string          `json:"userId"`
	Email  string          `json:"email"`
	Gil    decimal.Decimal `json:"gil"`
}

// Fault is written to a fault stream when a message cannot be processed.
type Fault struct {
	MessageID string    `json:"messageId"`
	StreamID  string    `json:"streamId"`
	Kind      string    `json:"kind"`
	Code      string    `json:"code"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	Event     Event     `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}
