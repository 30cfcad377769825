package domain

import "time"

// AuthSession is the server-side record backing an issued credential pair.
// It is the unit of revocation: a signed token is only honored while a live
// AuthSession with a matching ID exists in the session store.
type AuthSession struct {
	ID           string    `json:"id"`
	SubjectID    string    `json:"subject_id"`
	Email        string    `json:"email"`
	Roles        []string  `json:"roles,omitempty"`
	DeviceInfo   string    `json:"device_info,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the record has passed its expiry. Stores already
// treat an expired key as absent; this covers records read right before
// eviction.
func (s *AuthSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// HasRole reports whether the session subject carries the given role.
func (s *AuthSession) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}
