package outofoffice

import "errors"

var (
	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("outofoffice: invalid input")
	// ErrNotFound is returned when a referenced user or entry does not exist.
	ErrNotFound = errors.New("outofoffice: not found")
	// ErrConflict is returned when a new entry overlaps an existing one.
	ErrConflict = errors.New("outofoffice: conflict")
)

// Message keys surfaced to clients.
const (
	KeyDatesRequired    = "start_date_and_end_date_required"
	KeyStartAfterEnd    = "start_date_must_be_before_end_date"
	KeyStartInPast      = "start_date_must_be_in_the_future"
	KeyUserNotFound     = "user_not_found"
	KeyEntryExists      = "out_of_office_entry_already_exists"
	KeyInfiniteRedirect = "booking_redirect_infinite_not_allowed"
	KeyIDRequired       = "out_of_office_id_required"
	KeyEntryNotFound    = "out_of_office_entry_not_found"
)

// Error is a classified failure carrying a stable message key.
type Error struct {
	Kind error
	Key  string
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Key
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func invalid(key string) error  { return &Error{Kind: ErrInvalidInput, Key: key} }
func notFound(key string) error { return &Error{Kind: ErrNotFound, Key: key} }
func conflict(key string) error { return &Error{Kind: ErrConflict, Key: key} }

// MessageKey returns the client-facing key of err, or "" if err is not classified.
func MessageKey(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Key
	}
	return ""
}

// ErrorKind maps err to a stable label for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "unexpected"
	}
}
