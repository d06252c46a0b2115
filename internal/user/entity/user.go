package entity

import (
	"encoding/json"
	"time"
)

// User represents an account row in the `users` table.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	// Preferences is an opaque JSON object, {} when unset.
	Preferences json.RawMessage
	// SavedNeighborhoods holds neighborhood ids in the order they were saved.
	SavedNeighborhoods []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PublicUser is the projection returned to clients. It never carries the
// password hash.
type PublicUser struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Email              string          `json:"email"`
	Preferences        json.RawMessage `json:"preferences"`
	SavedNeighborhoods []string        `json:"savedNeighborhoods"`
}

// Public strips credentials and fills empty defaults.
func (u *User) Public() PublicUser {
	prefs := u.Preferences
	if len(prefs) == 0 {
		prefs = json.RawMessage("{}")
	}
	saved := u.SavedNeighborhoods
	if saved == nil {
		saved = []string{}
	}
	return PublicUser{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Preferences:        prefs,
		SavedNeighborhoods: saved,
	}
}
