package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// State is the lifecycle state of the session
type State int

const (
	// StateInitializing is the state before Initialize has read storage
	StateInitializing State = iota
	// StateAnonymous means no user is logged in
	StateAnonymous
	// StateAuthenticated means a token and a user profile are held
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ID is a user identifier. The backend sends it either as a JSON string or
// as a JSON number; both decode to the same string form.
type ID string

// UnmarshalJSON accepts strings and numbers
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// UserProfile is the cached copy of the account data returned by the backend
type UserProfile struct {
	ID           ID         `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Bio          string     `json:"bio,omitempty"`
	ProfileImage string     `json:"profile_image,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// Clone returns a deep copy of the profile
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	out := *u
	if u.CreatedAt != nil {
		t := *u.CreatedAt
		out.CreatedAt = &t
	}
	return &out
}

// Snapshot is a read-only view of the session handed to consumers
type Snapshot struct {
	Authenticated bool         `json:"is_authenticated"`
	User          *UserProfile `json:"user"`
}

// Credentials is what the auth service returns on a successful login
type Credentials struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user"`
}
