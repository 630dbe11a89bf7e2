package domain

import (
	"strconv"
	"time"
)

// UserRecord is the locally persisted user projection ("current user" storage
// key). Written on login, cleared on logout or a 401.
type UserRecord struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	AltID     string    `json:"altId,omitempty"` // secondary identifier some backends use
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BestIdentity returns the first non-empty identifier usable as a push
// channel key: numeric id, else alternate id, else email.
func (u *UserRecord) BestIdentity() string {
	if u == nil {
		return ""
	}
	if u.ID != 0 {
		return strconv.FormatInt(u.ID, 10)
	}
	if u.AltID != "" {
		return u.AltID
	}
	return u.Email
}

// SessionToken is the locally persisted bearer token ("session token"
// storage key). Value holds whatever the backend handed out; it is passed
// through token extraction at every read boundary rather than trusted as a
// plain string.
type SessionToken struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CoinInfo caches coin metadata and the local icon path between runs.
type CoinInfo struct {
	Symbol       string    `gorm:"primaryKey" json:"symbol"`
	Name         string    `json:"name"`
	IconPath     string    `json:"icon_path"`
	IsActive     bool      `json:"is_active" gorm:"index"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
