package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserView is the read-optimised projection of a user.
// It never exposes the dedup log or the concurrency version.
type UserView struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Gil       decimal.Decimal `json:"gil"`
	CreatedAt time.Time       `json:"createdDate"`
	UpdatedAt time.Time       `json:"updatedDate"`
}

func NewUserView(u *User) *UserView {
	return &UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Gil:       u.Gil,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
