package store

import "time"

type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Wins      int64     `json:"wins"`
	Losses    int64     `json:"losses"`
	Draws     int64     `json:"draws"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName prefers the username and falls back to the email.
func (a Account) DisplayName() string {
	if a.Username != "" {
		return a.Username
	}
	return a.Email
}
