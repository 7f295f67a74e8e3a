package models

import "time"

// User captures the profile, credential and session state of an account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Age          int       `json:"age"`
	PasswordHash string    `json:"-"`
	Tokens       []Token   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Token is one live session. Only the digest of the issued string is kept.
type Token struct {
	Hash string
}

// HasToken reports whether digest belongs to one of the user's live sessions.
func (u User) HasToken(digest string) bool {
	for _, t := range u.Tokens {
		if t.Hash == digest {
			return true
		}
	}
	return false
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name         *string
	Age          *int
	Email        *string
	PasswordHash *string
}

// Empty reports whether the update carries no changes.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Age == nil && p.Email == nil && p.PasswordHash == nil
}
