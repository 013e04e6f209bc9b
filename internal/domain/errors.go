package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidPostURL is returned when no post ID can be extracted from a URL.
	ErrInvalidPostURL = errors.New("invalid post URL")

	// ErrFetchFailed is returned when every mirror API attempt has failed.
	ErrFetchFailed = errors.New("unable to fetch post")

	// ErrRecordNotFound is returned when a history record cannot be found.
	ErrRecordNotFound = errors.New("record not found")

	// ErrNoMediaURLs is returned when a post carries no downloadable media.
	ErrNoMediaURLs = errors.New("no media URLs provided")

	// ErrDownloadFailed is returned when a media download fails.
	ErrDownloadFailed = errors.New("media download failed")

	// ErrURLExpired is returned when the media URL has expired.
	ErrURLExpired = errors.New("media URL has expired")

	// ErrRateLimited is returned when rate limited by an upstream service.
	ErrRateLimited = errors.New("rate limited")

	// ErrMediaNotFound is returned when a stored media object cannot be found.
	ErrMediaNotFound = errors.New("media file not found")

	// ErrInvalidPointer is returned for a storage pointer in neither
	// supported form.
	ErrInvalidPointer = errors.New("invalid storage pointer")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrNoFrames is returned when frame sampling produced nothing usable.
	ErrNoFrames = errors.New("no frames extracted from video")

	// ErrBackupInvalid is returned when a backup archive cannot be parsed.
	ErrBackupInvalid = errors.New("invalid backup archive")
)

// RecordError wraps an error with download-record context.
type RecordError struct {
	RecordID RecordID
	Op       string
	Err      error
}

func (e *RecordError) Error() string {
	if e.RecordID != "" {
		return e.Op + " [" + e.RecordID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError creates a new RecordError.
func NewRecordError(id RecordID, op string, err error) *RecordError {
	return &RecordError{
		RecordID: id,
		Op:       op,
		Err:      err,
	}
}
