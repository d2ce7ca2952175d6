package outofoffice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/outofoffice/internal/auth"
	"github.com/dukerupert/outofoffice/internal/database"
	"github.com/dukerupert/outofoffice/internal/email"
	"github.com/dukerupert/outofoffice/internal/model"
	"github.com/dukerupert/outofoffice/internal/store"
	"github.com/dukerupert/outofoffice/internal/websocket"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []email.BookingRedirectNotification
	err  error
}

func (f *fakeNotifier) SendBookingRedirectNotification(_ context.Context, n email.BookingRedirectNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

type sentMessage struct {
	msg     websocket.Message
	userIDs []int64
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeBroadcaster) SendToUsers(msg websocket.Message, userIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{msg: msg, userIDs: userIDs})
}

type fixture struct {
	svc      *Service
	users    *store.UserStore
	entries  *store.OutOfOfficeStore
	notifier *fakeNotifier
	hub      *fakeBroadcaster
	now      time.Time
	alice    auth.Identity
	bob      auth.Identity
	carol    auth.Identity
}

var testNow = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		users:    store.NewUserStore(db),
		entries:  store.NewOutOfOfficeStore(db),
		notifier: &fakeNotifier{},
		hub:      &fakeBroadcaster{},
		now:      testNow,
	}

	ids := 0
	f.svc = NewService(f.entries, f.users, f.notifier,
		WithClock(func() time.Time { return f.now }),
		WithLocation(time.UTC),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("uid-%d", ids)
		}),
		WithBroadcaster(f.hub),
	)

	f.alice = f.identity(t, "alice", "de")
	f.bob = f.identity(t, "bob", "en")
	f.carol = f.identity(t, "carol", "en")
	return f
}

func (f *fixture) identity(t *testing.T, username, locale string) auth.Identity {
	t.Helper()
	u, err := f.users.Create(context.Background(), username+"@example.com", username, "", locale)
	require.NoError(t, err)
	return auth.Identity{UserID: u.ID, Email: u.Email, Username: u.Username, Locale: u.Locale}
}

func date(s string) time.Time {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(v int64) *int64 { return &v }

func (f *fixture) create(caller auth.Identity, start, end string, to *int64) error {
	return f.svc.Create(context.Background(), caller, CreateInput{
		StartDate:    date(start),
		EndDate:      date(end),
		ToTeamUserID: to,
	})
}

func (f *fixture) list(t *testing.T, caller auth.Identity) []model.OutOfOfficeListItem {
	t.Helper()
	items, err := f.svc.List(context.Background(), caller)
	require.NoError(t, err)
	return items
}

func assertKey(t *testing.T, err error, kind error, key string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	assert.Equal(t, key, MessageKey(err))
}

func TestCreateAndList(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", nil))

	items := f.list(t, f.alice)
	require.Len(t, items, 1)
	assert.Equal(t, "uid-1", items[0].UUID)
	assert.Nil(t, items[0].ToUser)
}

func TestCreateNormalizesDayBoundaries(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Create(context.Background(), f.alice, CreateInput{
		StartDate: time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	items := f.list(t, f.alice)
	require.Len(t, items, 1)
	assert.True(t, items[0].Start.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)), "start = %v", items[0].Start)
	assert.True(t, items[0].End.Equal(time.Date(2024, 1, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC)), "end = %v", items[0].End)
}

func TestCreateNormalizesInServiceLocation(t *testing.T) {
	f := newFixture(t)
	loc := time.FixedZone("UTC+2", 2*60*60)
	f.svc.loc = loc

	// 23:00 UTC on the 9th is already the 10th two hours east.
	err := f.svc.Create(context.Background(), f.alice, CreateInput{
		StartDate: time.Date(2024, 1, 9, 23, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 9, 23, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	items := f.list(t, f.alice)
	require.Len(t, items, 1)
	assert.True(t, items[0].Start.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, loc)), "start = %v", items[0].Start)
}

func TestCreateSameDayWindow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-10", nil))
}

func TestCreateRequiresDates(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Create(context.Background(), f.alice, CreateInput{StartDate: date("2024-01-10")})
	assertKey(t, err, ErrInvalidInput, KeyDatesRequired)

	err = f.svc.Create(context.Background(), f.alice, CreateInput{EndDate: date("2024-01-10")})
	assertKey(t, err, ErrInvalidInput, KeyDatesRequired)
}

func TestCreateStartAfterEnd(t *testing.T) {
	f := newFixture(t)

	err := f.create(f.alice, "2024-01-15", "2024-01-10", nil)
	assertKey(t, err, ErrInvalidInput, KeyStartAfterEnd)
}

func TestCreateStartInPast(t *testing.T) {
	f := newFixture(t)

	err := f.create(f.alice, "2024-01-04", "2024-01-10", nil)
	assertKey(t, err, ErrInvalidInput, KeyStartInPast)

	// Today is still allowed.
	require.NoError(t, f.create(f.alice, "2024-01-05", "2024-01-06", nil))
}

func TestCreatePastToleranceFollowsOffset(t *testing.T) {
	f := newFixture(t)
	f.svc.loc = time.FixedZone("UTC-5", -5*60*60)
	f.now = time.Date(2024, 1, 5, 12, 0, 0, 0, f.svc.loc)

	// Start of the 5th minus five hours lands on the evening of the 4th, so
	// a start of the 4th is still too early.
	err := f.svc.Create(context.Background(), f.alice, CreateInput{
		StartDate: time.Date(2024, 1, 4, 0, 0, 0, 0, f.svc.loc),
		EndDate:   time.Date(2024, 1, 6, 0, 0, 0, 0, f.svc.loc),
	})
	assertKey(t, err, ErrInvalidInput, KeyStartInPast)

	assert.True(t, earliestStart(f.now, f.svc.loc).Equal(time.Date(2024, 1, 4, 19, 0, 0, 0, f.svc.loc)))
}

func TestCreateUnknownDelegate(t *testing.T) {
	f := newFixture(t)

	err := f.create(f.alice, "2024-01-10", "2024-01-15", ptr(9999))
	assertKey(t, err, ErrNotFound, KeyUserNotFound)
	assert.Empty(t, f.list(t, f.alice))
}

func TestCreateSelfRedirect(t *testing.T) {
	f := newFixture(t)

	err := f.create(f.alice, "2024-01-10", "2024-01-15", ptr(f.alice.UserID))
	assertKey(t, err, ErrInvalidInput, KeyInfiniteRedirect)
}

func TestCreateOverlapConflict(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", nil))

	err := f.create(f.alice, "2024-01-12", "2024-01-20", nil)
	assertKey(t, err, ErrConflict, KeyEntryExists)

	// Touching the last day counts as overlap.
	err = f.create(f.alice, "2024-01-15", "2024-01-16", nil)
	assertKey(t, err, ErrConflict, KeyEntryExists)

	// Other users are unaffected.
	require.NoError(t, f.create(f.bob, "2024-01-12", "2024-01-20", nil))
	// The next day is free.
	require.NoError(t, f.create(f.alice, "2024-01-16", "2024-01-18", nil))
}

func TestCreateRedirectCycle(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-02-01", "2024-02-05", ptr(f.bob.UserID)))

	err := f.create(f.bob, "2024-02-03", "2024-02-10", ptr(f.alice.UserID))
	assertKey(t, err, ErrInvalidInput, KeyInfiniteRedirect)

	require.NoError(t, f.create(f.bob, "2024-03-01", "2024-03-05", ptr(f.alice.UserID)))
}

func TestCreateLongerChainAllowed(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-02-01", "2024-02-05", ptr(f.bob.UserID)))
	require.NoError(t, f.create(f.bob, "2024-02-01", "2024-02-05", ptr(f.carol.UserID)))
	require.NoError(t, f.create(f.carol, "2024-02-01", "2024-02-05", ptr(f.alice.UserID)))
}

func TestCreateNotifiesDelegate(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", ptr(f.bob.UserID)))

	require.Len(t, f.notifier.sent, 1)
	n := f.notifier.sent[0]
	assert.Equal(t, "de", n.Language)
	assert.Equal(t, "alice@example.com", n.FromEmail)
	assert.Equal(t, "bob@example.com", n.ToEmail)
	assert.Equal(t, "bob", n.ToName)
	assert.Equal(t, "01/10/2024 - 01/15/2024", n.Dates)

	items := f.list(t, f.alice)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].ToUser)
	assert.Equal(t, "bob", items[0].ToUser.Username)
	assert.Equal(t, f.bob.UserID, *items[0].ToUserID)
}

func TestCreateWithoutDelegateDoesNotNotify(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", nil))
	assert.Empty(t, f.notifier.sent)
}

func TestCreateNotificationFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("postmark down")

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", ptr(f.bob.UserID)))
	assert.Len(t, f.list(t, f.alice), 1)
}

func TestCreateWithNilNotifier(t *testing.T) {
	f := newFixture(t)
	f.svc.notifier = nil

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", ptr(f.bob.UserID)))
}

func TestCreateBroadcastsToOwnerAndDelegate(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", ptr(f.bob.UserID)))

	require.Len(t, f.hub.sent, 1)
	assert.Equal(t, "out_of_office_created", f.hub.sent[0].msg.Type)
	assert.Equal(t, "uid-1", f.hub.sent[0].msg.UUID)
	assert.ElementsMatch(t, []int64{f.alice.UserID, f.bob.UserID}, f.hub.sent[0].userIDs)
}

func TestCreateFailureDoesNotBroadcast(t *testing.T) {
	f := newFixture(t)

	err := f.create(f.alice, "2024-01-15", "2024-01-10", nil)
	require.Error(t, err)
	assert.Empty(t, f.hub.sent)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", ptr(f.bob.UserID)))
	require.NoError(t, f.svc.Delete(context.Background(), f.alice, "uid-1"))

	assert.Empty(t, f.list(t, f.alice))
	require.Len(t, f.hub.sent, 2)
	assert.Equal(t, "out_of_office_deleted", f.hub.sent[1].msg.Type)
	assert.ElementsMatch(t, []int64{f.alice.UserID, f.bob.UserID}, f.hub.sent[1].userIDs)

	// The window is free again.
	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", nil))
}

func TestDeleteRequiresID(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Delete(context.Background(), f.alice, "  ")
	assertKey(t, err, ErrInvalidInput, KeyIDRequired)
}

func TestDeleteUnknown(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Delete(context.Background(), f.alice, "missing")
	assertKey(t, err, ErrNotFound, KeyEntryNotFound)
}

func TestDeleteNotOwned(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", nil))

	err := f.svc.Delete(context.Background(), f.bob, "uid-1")
	assertKey(t, err, ErrNotFound, KeyEntryNotFound)

	items := f.list(t, f.alice)
	require.Len(t, items, 1)
	assert.Equal(t, "uid-1", items[0].UUID)
}

func TestListExcludesEndedEntries(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-05", "2024-01-06", nil))
	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-12", nil))
	require.NoError(t, f.create(f.alice, "2024-02-01", "2024-02-03", nil))

	// Jump past the first entry's end.
	f.now = time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	items := f.list(t, f.alice)
	require.Len(t, items, 2)
	assert.Equal(t, "uid-3", items[0].UUID)
	assert.Equal(t, "uid-2", items[1].UUID)
	for _, it := range items {
		assert.False(t, it.End.Before(f.now), "entry %s ended at %v", it.UUID, it.End)
	}
}

func TestListIncludesEntryEndingToday(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-05", "2024-01-05", nil))
	f.now = time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC)

	assert.Len(t, f.list(t, f.alice), 1)
}

func TestListEmptyIsNotNil(t *testing.T) {
	f := newFixture(t)

	items := f.list(t, f.alice)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestListOnlyOwnEntries(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.create(f.alice, "2024-01-10", "2024-01-15", ptr(f.bob.UserID)))
	assert.Empty(t, f.list(t, f.bob))
}

func TestRoundTripNormalizedWindow(t *testing.T) {
	f := newFixture(t)

	windows := [][2]string{
		{"2024-01-10", "2024-01-10"},
		{"2024-01-20", "2024-01-25"},
		{"2024-03-01", "2024-04-15"},
	}
	for _, w := range windows {
		require.NoError(t, f.create(f.alice, w[0], w[1], nil))
	}

	items := f.list(t, f.alice)
	require.Len(t, items, len(windows))
	for i, it := range items {
		w := windows[len(windows)-1-i]
		assert.True(t, it.Start.Equal(startOfDay(date(w[0]), time.UTC)), "start = %v", it.Start)
		assert.True(t, it.End.Equal(endOfDay(date(w[1]), time.UTC)), "end = %v", it.End)
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "invalid_input", ErrorKind(invalid(KeyStartAfterEnd)))
	assert.Equal(t, "not_found", ErrorKind(notFound(KeyUserNotFound)))
	assert.Equal(t, "conflict", ErrorKind(conflict(KeyEntryExists)))
	assert.Equal(t, "unexpected", ErrorKind(errors.New("disk on fire")))
	assert.Equal(t, "conflict", ErrorKind(fmt.Errorf("wrapped: %w", conflict(KeyEntryExists))))
	assert.Equal(t, "", MessageKey(errors.New("plain")))
}
