// Package model defines the records persisted in the library document.
//
// The JSON tags are the on-disk schema. They match the field names the
// desktop UI has always written (uid, passwordHash, isVerified, ...), so an
// existing db.json keeps loading without any migration step.
package model

import (
	"encoding/json"
	"time"
)

// AdminUsername is the name of the bootstrap account. Exactly one user holds
// it and that user is always verified.
const AdminUsername = "Admin"

// User is a library account.
//
// PasswordHash holds the encoded password (legacy reversible encoding or a
// bcrypt hash, see internal/auth). TemporaryPass is issued by a password
// reset and is only honoured until TemporaryPassExpirationDate. It is ""
// on a fresh account and null once the password has been changed.
type User struct {
	UID                         string     `json:"uid"`
	Username                    string     `json:"username"`
	PasswordHash                string     `json:"passwordHash"`
	IsVerified                  bool       `json:"isVerified"`
	TemporaryPass               *string    `json:"temporaryPass"`
	TemporaryPassExpirationDate *time.Time `json:"temporaryPassExpirationDate"`
}

// IsAdmin reports whether u is the bootstrap Admin account.
func (u User) IsAdmin() bool {
	return u.Username == AdminUsername
}

// HasValidTemporaryPass reports whether a temporary password is set and has
// not expired at now.
func (u User) HasValidTemporaryPass(now time.Time) bool {
	if Deref(u.TemporaryPass) == "" || u.TemporaryPassExpirationDate == nil {
		return false
	}
	return now.Before(*u.TemporaryPassExpirationDate)
}

// Public returns a copy safe to hand to the UI: the encoded password never
// leaves the backend.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		TemporaryPassExpirationDate *isoTime `json:"temporaryPassExpirationDate"`
	}{plain(u), isoPtr(u.TemporaryPassExpirationDate)})
}
