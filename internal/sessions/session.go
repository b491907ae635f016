package sessions

import "time"

// Session is a refresh session issued at login.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id,omitempty"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	UserID       string    `bson:"userId" json:"userId"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// Expired reports whether the session is past its expiry at t.
func (s *Session) Expired(t time.Time) bool {
	return t.After(s.ExpiresAt)
}
