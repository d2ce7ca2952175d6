package outofoffice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/outofoffice/internal/auth"
	"github.com/dukerupert/outofoffice/internal/email"
	"github.com/dukerupert/outofoffice/internal/metrics"
	"github.com/dukerupert/outofoffice/internal/model"
	"github.com/dukerupert/outofoffice/internal/store"
	"github.com/dukerupert/outofoffice/internal/websocket"
)

const entity = "out_of_office"

// EntryStore persists out of office entries.
type EntryStore interface {
	InTx(ctx context.Context, fn func(tx store.OutOfOfficeTx) error) error
	ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]model.OutOfOfficeListItem, error)
}

// UserLookup resolves delegates.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Notifier tells a delegate that bookings are being redirected to them.
type Notifier interface {
	SendBookingRedirectNotification(ctx context.Context, n email.BookingRedirectNotification) error
}

// Broadcaster pushes live updates to connected users.
type Broadcaster interface {
	SendToUsers(msg websocket.Message, userIDs ...int64)
}

// CreateInput is a request to create an out of office entry. Zero dates mean
// the value was not supplied.
type CreateInput struct {
	StartDate    time.Time
	EndDate      time.Time
	ToTeamUserID *int64
}

type Service struct {
	entries     EntryStore
	users       UserLookup
	notifier    Notifier
	broadcaster Broadcaster
	now         func() time.Time
	loc         *time.Location
	newID       func() string
	logger      *slog.Logger
}

type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone calendar dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// NewService builds a Service. notifier may be nil, in which case no
// notifications are sent.
func NewService(entries EntryStore, users UserLookup, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		entries:  entries,
		users:    users,
		notifier: notifier,
		now:      time.Now,
		loc:      time.Local,
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "outofoffice")
	return s
}

// Location returns the zone calendar dates are interpreted in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Create records a new out of office window for the caller, optionally
// redirecting bookings to another user.
func (s *Service) Create(ctx context.Context, caller auth.Identity, in CreateInput) error {
	entry, delegate, err := s.create(ctx, caller, in)
	metrics.IncEntryCreated(ErrorKind(err))
	if err != nil {
		s.logFailure("create", caller, err)
		return err
	}

	attrs := []any{"operation", "create", "user_id", caller.UserID, "uuid", entry.UUID}
	if delegate != nil {
		attrs = append(attrs, "to_user_id", delegate.ID)
	}
	s.logger.Info("out of office entry created", attrs...)

	if delegate != nil {
		s.notify(ctx, caller, delegate, entry)
	}
	s.broadcast("created", entry)
	return nil
}

func (s *Service) create(ctx context.Context, caller auth.Identity, in CreateInput) (*model.OutOfOfficeEntry, *model.User, error) {
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, nil, invalid(KeyDatesRequired)
	}

	start := startOfDay(in.StartDate, s.loc)
	end := endOfDay(in.EndDate, s.loc)

	if start.After(end) {
		return nil, nil, invalid(KeyStartAfterEnd)
	}
	if start.Before(earliestStart(s.now(), s.loc)) {
		return nil, nil, invalid(KeyStartInPast)
	}

	var delegate *model.User
	if in.ToTeamUserID != nil {
		u, err := s.users.GetByID(ctx, *in.ToTeamUserID)
		if err != nil {
			return nil, nil, fmt.Errorf("get delegate: %w", err)
		}
		if u == nil {
			return nil, nil, notFound(KeyUserNotFound)
		}
		if u.ID == caller.UserID {
			return nil, nil, invalid(KeyInfiniteRedirect)
		}
		delegate = u
	}

	var created *model.OutOfOfficeEntry
	err := s.entries.InTx(ctx, func(tx store.OutOfOfficeTx) error {
		existing, err := tx.FindOverlapping(ctx, caller.UserID, start, end)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflict(KeyEntryExists)
		}

		if delegate != nil {
			cycle, err := tx.FindRedirectCycle(ctx, delegate.ID, caller.UserID, start, end)
			if err != nil {
				return err
			}
			if cycle != nil {
				return invalid(KeyInfiniteRedirect)
			}
		}

		entry := model.OutOfOfficeEntry{
			UUID:   s.newID(),
			Start:  start,
			End:    end,
			UserID: caller.UserID,
		}
		if delegate != nil {
			entry.ToUserID = &delegate.ID
		}

		created, err = tx.Create(ctx, entry)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return created, delegate, nil
}

// Delete removes one of the caller's entries by its uuid.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, uid string) error {
	entry, err := s.delete(ctx, caller, strings.TrimSpace(uid))
	metrics.IncEntryDeleted(ErrorKind(err))
	if err != nil {
		s.logFailure("delete", caller, err)
		return err
	}

	s.logger.Info("out of office entry deleted",
		"operation", "delete",
		"user_id", caller.UserID,
		"uuid", entry.UUID,
	)
	s.broadcast("deleted", entry)
	return nil
}

func (s *Service) delete(ctx context.Context, caller auth.Identity, uid string) (*model.OutOfOfficeEntry, error) {
	if uid == "" {
		return nil, invalid(KeyIDRequired)
	}

	var entry *model.OutOfOfficeEntry
	err := s.entries.InTx(ctx, func(tx store.OutOfOfficeTx) error {
		var err error
		entry, err = tx.GetByUUIDForUser(ctx, uid, caller.UserID)
		if err != nil {
			return err
		}
		if entry == nil {
			return notFound(KeyEntryNotFound)
		}

		n, err := tx.DeleteByUUIDForUser(ctx, uid, caller.UserID)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(KeyEntryNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the caller's entries that have not yet ended, latest start first.
func (s *Service) List(ctx context.Context, caller auth.Identity) ([]model.OutOfOfficeListItem, error) {
	items, err := s.entries.ListActiveByUser(ctx, caller.UserID, s.now())
	if err != nil {
		s.logFailure("list", caller, err)
		return nil, fmt.Errorf("list out of office entries: %w", err)
	}
	return items, nil
}

func (s *Service) notify(ctx context.Context, caller auth.Identity, delegate *model.User, entry *model.OutOfOfficeEntry) {
	if s.notifier == nil || delegate.Email == "" {
		metrics.IncNotification("skipped")
		return
	}

	err := s.notifier.SendBookingRedirectNotification(ctx, email.BookingRedirectNotification{
		Language:  caller.Locale,
		FromEmail: caller.Email,
		ToEmail:   delegate.Email,
		ToName:    delegate.Username,
		Dates:     FormatDateRange(entry.Start, entry.End, s.loc),
	})
	if err != nil {
		metrics.IncNotification("failed")
		s.logger.Warn("booking redirect notification failed",
			"operation", "create",
			"user_id", caller.UserID,
			"to_user_id", delegate.ID,
			"error", err,
		)
		return
	}
	metrics.IncNotification("sent")
}

func (s *Service) broadcast(action string, entry *model.OutOfOfficeEntry) {
	if s.broadcaster == nil {
		return
	}
	recipients := []int64{entry.UserID}
	if entry.ToUserID != nil {
		recipients = append(recipients, *entry.ToUserID)
	}
	s.broadcaster.SendToUsers(websocket.NewMessage(entity, action, entry.UUID, nil), recipients...)
}

func (s *Service) logFailure(operation string, caller auth.Identity, err error) {
	kind := ErrorKind(err)
	level := slog.LevelInfo
	if kind == "unexpected" {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, "out of office request failed",
		"operation", operation,
		"user_id", caller.UserID,
		"error_kind", kind,
		"message_key", MessageKey(err),
		"error", err,
	)
}
