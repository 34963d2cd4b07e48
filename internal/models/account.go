package models

import (
	"time"
)

// Channel names. The in-app channel is implicitly configured for every account.
const (
	ChannelInApp    = "in_app"
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// Account is the subset of a user account the reminder engine reads:
// identity plus the per-user delivery channel configuration.
type Account struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"size:30;not null;uniqueIndex" json:"username"`
	Email      string    `gorm:"size:255" json:"email,omitempty"`
	TelegramID string    `gorm:"size:64" json:"telegram_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the Account model
func (Account) TableName() string {
	return "account"
}

// Recipient is the identity a channel delivers to
type Recipient struct {
	UserID  uint   `json:"user_id"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// ChannelSet maps each channel available to a user onto that user's
// recipient identity on the channel. Absent channels are not configured.
type ChannelSet map[string]Recipient

// Has reports whether channel is configured
func (s ChannelSet) Has(channel string) bool {
	_, ok := s[channel]
	return ok
}

// Channels derives the capability set for an account
func (a *Account) Channels() ChannelSet {
	set := ChannelSet{
		ChannelInApp: {UserID: a.ID, Name: a.Username},
	}
	if a.Email != "" {
		set[ChannelEmail] = Recipient{UserID: a.ID, Name: a.Username, Address: a.Email}
	}
	if a.TelegramID != "" {
		set[ChannelTelegram] = Recipient{UserID: a.ID, Name: a.Username, Address: a.TelegramID}
	}
	return set
}
