package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
)

// Top-level keys of the persisted document.
const (
	keyUsers         = "users"
	keyEbooks        = "ebooks"
	keyCollections   = "collections"
	keyCurrentUserID = "currentUserId"
)

// Normalize back-fills every missing collection with its empty default.
// It is applied on every load and every save, and is idempotent.
func Normalize(doc *model.Document) {
	if doc.Users == nil {
		doc.Users = []model.User{}
	}
	if doc.Ebooks == nil {
		doc.Ebooks = []model.Ebook{}
	}
	if doc.Collections == nil {
		doc.Collections = []model.ReadingRecord{}
	}
}

// NewDocument returns an empty, fully defaulted document.
func NewDocument() *model.Document {
	doc := &model.Document{}
	Normalize(doc)
	return doc
}

// Decode parses a serialized document.
//
// Bytes that are not JSON at all fail with apperror.ErrCorruptStore.
// JSON whose shape cannot be repaired by defaulting (a top-level array,
// "users" holding a string, ...) fails with apperror.ErrDatabase.
// Missing or null keys are filled with their defaults.
func Decode(data []byte) (*model.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 || !json.Valid(data) {
		return nil, apperror.CorruptStore(fmt.Errorf("document is not valid JSON"))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, apperror.Database("document is not an object")
	}

	doc := &model.Document{}
	if err := decodeKey(raw, keyUsers, &doc.Users); err != nil {
		return nil, err
	}
	if err := decodeKey(raw, keyEbooks, &doc.Ebooks); err != nil {
		return nil, err
	}
	if err := decodeKey(raw, keyCollections, &doc.Collections); err != nil {
		return nil, err
	}
	if err := decodeKey(raw, keyCurrentUserID, &doc.CurrentUserID); err != nil {
		return nil, err
	}

	for _, k := range []string{keyUsers, keyEbooks, keyCollections, keyCurrentUserID} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		doc.Extra = raw
	}

	Normalize(doc)
	return doc, nil
}

func decodeKey(raw map[string]json.RawMessage, key string, dst any) error {
	v, ok := raw[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return apperror.Database(fmt.Sprintf("%s is malformed: %v", key, err))
	}
	return nil
}

// Encode serializes doc as indented JSON after applying defaults.
// Keys are written in sorted order, so encoding the same document twice
// yields identical bytes.
func Encode(doc *model.Document) ([]byte, error) {
	Normalize(doc)

	out := make(map[string]json.RawMessage, len(doc.Extra)+4)
	for k, v := range doc.Extra {
		out[k] = v
	}

	fields := []struct {
		key string
		val any
	}{
		{keyUsers, doc.Users},
		{keyEbooks, doc.Ebooks},
		{keyCollections, doc.Collections},
		{keyCurrentUserID, doc.CurrentUserID},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.val)
		if err != nil {
			return nil, fmt.Errorf("store: encoding %s: %w", f.key, err)
		}
		out[f.key] = b
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("store: encoding document: %w", err)
	}
	return data, nil
}
