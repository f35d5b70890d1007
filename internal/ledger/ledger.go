// Package ledger holds the balance rules of a user record: the dedup check and
// the debit arithmetic.
package ledger

import (
	"errors"
	"fmt"
	"slices"

	"github.com/eaglebank/identity-service/shared/models"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient gil")
	ErrNegativeAmount    = errors.New("gil amount must not be negative")
)

// AlreadyApplied reports whether messageID is already in the user's dedup log.
func AlreadyApplied(user *models.User, messageID string) bool {
	return slices.Contains(user.MessageIDs, messageID)
}

// Debit returns a copy of user with amount taken from its gil and messageID
// recorded in its dedup log. The two changes only exist together; user itself
// is never modified.
func Debit(user *models.User, amount decimal.Decimal, messageID string) (*models.User, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}

	remaining := user.Gil.Sub(amount)
	if remaining.IsNegative() {
		return nil, fmt.Errorf("%w: user %s has %s, requested %s", ErrInsufficientFunds, user.ID, user.Gil, amount)
	}

	messageIDs := make([]string, 0, len(user.MessageIDs)+1)
	messageIDs = append(messageIDs, user.MessageIDs...)

	next := *user
	next.Gil = remaining
	next.MessageIDs = append(messageIDs, messageID)
	return &next, nil
}
