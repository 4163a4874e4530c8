package model

import (
	"encoding/json"
	"time"
)

// ReadingRecord is the last page a user reached in a book. There is at most
// one record per (UserID, BookID).
type ReadingRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	LastPage  int       `json:"lastPage"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r ReadingRecord) MarshalJSON() ([]byte, error) {
	type plain ReadingRecord
	return json.Marshal(struct {
		plain
		CreatedAt isoTime `json:"createdAt"`
		UpdatedAt isoTime `json:"updatedAt"`
	}{plain(r), isoTime(r.CreatedAt), isoTime(r.UpdatedAt)})
}
