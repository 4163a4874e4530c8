package model

import (
	"encoding/json"
	"strings"
	"time"
)

// EbookScheme is the symbolic reference scheme stored in Ebook.FilePath.
// The UI resolves "ebooks://<fileName>" against the managed directory.
const EbookScheme = "ebooks://"

// UnknownUploader is recorded as UploadedBy/UpdatedBy when nobody is logged in.
const UnknownUploader = "unknown"

// Ebook is an uploaded book. The bytes live in the managed ebooks
// directory under FileName; the record only references them. DOI is null
// when none was given.
type Ebook struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	Publisher  string     `json:"publisher"`
	DOI        *string    `json:"doi"`
	FilePath   string     `json:"filePath"`
	FileName   string     `json:"fileName"`
	FileSize   int64      `json:"fileSize"`
	PageCount  int        `json:"pageCount,omitempty"`
	UploadedAt time.Time  `json:"uploadedAt"`
	UploadedBy string     `json:"uploadedBy"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	UpdatedBy  string     `json:"updatedBy,omitempty"`
}

// StoredFileName returns the managed file name, falling back to the last
// element of the ebooks:// reference for records written before fileName
// was stored.
func (e Ebook) StoredFileName() string {
	if e.FileName != "" {
		return e.FileName
	}
	ref := strings.TrimPrefix(e.FilePath, EbookScheme)
	if i := strings.LastIndexAny(ref, `/\`); i >= 0 {
		ref = ref[i+1:]
	}
	return ref
}

func (e Ebook) MarshalJSON() ([]byte, error) {
	type plain Ebook
	return json.Marshal(struct {
		plain
		UploadedAt isoTime  `json:"uploadedAt"`
		UpdatedAt  *isoTime `json:"updatedAt,omitempty"`
	}{plain(e), isoTime(e.UploadedAt), isoPtr(e.UpdatedAt)})
}

// EbookPatch carries the metadata fields an update may change.
// A nil field is left untouched.
type EbookPatch struct {
	Title     *string `json:"title,omitempty"`
	Author    *string `json:"author,omitempty"`
	Publisher *string `json:"publisher,omitempty"`
	DOI       *string `json:"doi,omitempty"`
}

// FileReplacement describes a new backing file already copied into the
// managed directory.
type FileReplacement struct {
	FileName  string
	FileSize  int64
	PageCount int
}
