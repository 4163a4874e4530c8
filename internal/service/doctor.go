package service

import (
	"context"
	"fmt"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/model"
)

// DocumentViewer gives read-only access to the whole document.
// *store.Store implements it.
type DocumentViewer interface {
	View(ctx context.Context, fn func(doc *model.Document) error) error
}

// Problem is one inconsistency found by Diagnose.
type Problem struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Report summarizes the document and lists what looks wrong with it.
type Report struct {
	Users       int       `json:"users"`
	Ebooks      int       `json:"ebooks"`
	Collections int       `json:"collections"`
	LoggedIn    string    `json:"loggedIn,omitempty"`
	Problems    []Problem `json:"problems"`
}

// Healthy reports whether no problems were found.
func (r *Report) Healthy() bool {
	return len(r.Problems) == 0
}

// Diagnose checks the document for broken references. fileExists resolves
// an ebook's stored file name; it runs after the document lock is released.
func Diagnose(ctx context.Context, docs DocumentViewer, fileExists func(fileName string) bool) (*Report, error) {
	report := &Report{Problems: []Problem{}}
	var ebooks []model.Ebook

	err := docs.View(ctx, func(doc *model.Document) error {
		report.Users = len(doc.Users)
		report.Ebooks = len(doc.Ebooks)
		report.Collections = len(doc.Collections)
		ebooks = append([]model.Ebook(nil), doc.Ebooks...)

		add := func(kind, format string, args ...any) {
			report.Problems = append(report.Problems, Problem{Kind: kind, Detail: fmt.Sprintf(format, args...)})
		}

		admins := 0
		seen := make(map[string]bool, len(doc.Users))
		for _, u := range doc.Users {
			if seen[u.Username] {
				add("duplicate_username", "username %q is held by more than one account", u.Username)
			}
			seen[u.Username] = true
			if u.IsAdmin() {
				admins++
				if !u.IsVerified {
					add("admin_unverified", "admin account %s is not verified", u.UID)
				}
			}
		}
		if admins == 0 {
			add("admin_missing", "no %s account", model.AdminUsername)
		}

		if doc.CurrentUserID != nil {
			if u := doc.CurrentUser(); u != nil {
				report.LoggedIn = u.Username
			} else {
				add("dangling_session", "currentUserId %s matches no user", *doc.CurrentUserID)
			}
		}

		for _, c := range doc.Collections {
			if doc.FindUser(c.UserID) < 0 {
				add("orphan_reading", "reading record %s references missing user %s", c.ID, c.UserID)
			}
			if doc.FindEbook(c.BookID) < 0 {
				add("orphan_reading", "reading record %s references missing ebook %s", c.ID, c.BookID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/doctor: %w", err)
	}

	for _, e := range ebooks {
		name := e.StoredFileName()
		if name == "" || !fileExists(name) {
			report.Problems = append(report.Problems, Problem{
				Kind:   "missing_file",
				Detail: fmt.Sprintf("ebook %s (%q) has no file %q", e.ID, e.Title, name),
			})
		}
	}
	return report, nil
}
