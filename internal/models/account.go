package models

import "time"

// Account is a registered user account. Accounts never message directly;
// all chat activity happens through a persona the account owns.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
