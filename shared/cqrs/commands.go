package cqrs

import "github.com/shopspring/decimal"

// DebitGilCommand is a DebitGil message together with the bus-level message
// ID used for deduplication.
type DebitGilCommand struct {
	MessageID     string `validate:"required"`
	UserID        string `validate:"required"`
	Gil           decimal.Decimal
	CorrelationID string `validate:"required"`
}
