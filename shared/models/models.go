package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the write model of an identity record. Gil and MessageIDs are the
// balance ledger: they are always persisted together in a single write.
type User struct {
	ID         string          `json:"id"`
	Username   string          `json:"username"`
	Email      string          `json:"email"`
	Gil        decimal.Decimal `json:"gil"`
	MessageIDs []string        `json:"-"`
	Version    int64           `json:"-"`
	CreatedAt  time.Time       `json:"createdDate"`
	UpdatedAt  time.Time       `json:"updatedDate"`
}
