package model

import "encoding/json"

// Document is the whole persisted application state.
//
// Users, Ebooks and Collections are never nil after the store has loaded
// or saved a document. Extra keeps top-level keys this version does not
// know about, so they survive a load/save cycle untouched.
type Document struct {
	Users         []User
	Ebooks        []Ebook
	Collections   []ReadingRecord
	CurrentUserID *string
	Extra         map[string]json.RawMessage
}

// FindUser returns the index of the user with uid, or -1.
func (d *Document) FindUser(uid string) int {
	for i := range d.Users {
		if d.Users[i].UID == uid {
			return i
		}
	}
	return -1
}

// FindUsername returns the index of the user named username, or -1.
// Matching is exact and case-sensitive.
func (d *Document) FindUsername(username string) int {
	for i := range d.Users {
		if d.Users[i].Username == username {
			return i
		}
	}
	return -1
}

// FindEbook returns the index of the ebook with id, or -1.
func (d *Document) FindEbook(id string) int {
	for i := range d.Ebooks {
		if d.Ebooks[i].ID == id {
			return i
		}
	}
	return -1
}

// FindReading returns the index of the (userID, bookID) record, or -1.
func (d *Document) FindReading(userID, bookID string) int {
	for i := range d.Collections {
		if d.Collections[i].UserID == userID && d.Collections[i].BookID == bookID {
			return i
		}
	}
	return -1
}

// CurrentUser resolves CurrentUserID. It returns nil when no session is
// set or when the id no longer matches a user.
func (d *Document) CurrentUser() *User {
	if d.CurrentUserID == nil {
		return nil
	}
	if i := d.FindUser(*d.CurrentUserID); i >= 0 {
		return &d.Users[i]
	}
	return nil
}

// CurrentUserIDOr returns the session user id, or fallback when unset.
func (d *Document) CurrentUserIDOr(fallback string) string {
	if d.CurrentUserID == nil || *d.CurrentUserID == "" {
		return fallback
	}
	return *d.CurrentUserID
}
