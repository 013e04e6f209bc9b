package domain

import (
	"strings"
	"time"
)

// RecordID is a unique identifier for a download record.
type RecordID string

// String returns the string representation of the RecordID.
func (id RecordID) String() string {
	return string(id)
}

// LibraryScheme prefixes storage pointers that reference the shared media
// library rather than a plain filesystem path.
const LibraryScheme = "library://"

// StoragePointer is an opaque reference to a stored media object. It is
// either an absolute filesystem path or a library://<collection>/<name>
// reference; every reader must handle both forms.
type StoragePointer string

// String returns the raw pointer value.
func (p StoragePointer) String() string {
	return string(p)
}

// IsLibrary reports whether the pointer uses the library scheme.
func (p StoragePointer) IsLibrary() bool {
	return strings.HasPrefix(string(p), LibraryScheme)
}

// LibraryParts splits a library pointer into collection and object name.
// ok is false for path-based pointers or malformed library references.
func (p StoragePointer) LibraryParts() (collection, name string, ok bool) {
	if !p.IsLibrary() {
		return "", "", false
	}
	rest := strings.TrimPrefix(string(p), LibraryScheme)
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// DownloadRecord is one row of download history: a single media asset
// fetched from a post. The storage pointer is the only durable reference to
// the downloaded copy.
type DownloadRecord struct {
	ID             RecordID
	PostID         PostID
	PostURL        string
	AuthorName     string
	AuthorHandle   string
	Text           string
	DownloadedAt   time.Time
	ThumbnailPath  string // empty when no thumbnail exists
	MediaURL       string
	MediaKind      MediaKind
	StoragePointer StoragePointer
	MediaIndex     int // position within the post
	MediaCount     int // total media items in the post
}
