package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roadmapai/backend/internal/pathgen"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newPathRecord(userID, traceID string) *PathRecord {
	now := time.Now().UTC()
	return &PathRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		TraceID:   traceID,
		Topic:     "Rust",
		GoalLevel: "intermediate",
		Status:    pathgen.StatusCompleted,
		Content:   json.RawMessage(`{"curriculum":{"title":"Learning Path: Rust"}}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateUserAndLookup(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u := &User{
		ID:           uuid.NewString(),
		Email:        "ada@example.com",
		PasswordHash: "$2a$10$hash",
		Name:         "Ada",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	byEmail, err := s.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != u.ID || byEmail.PasswordHash != u.PasswordHash {
		t.Fatalf("unexpected user: %+v", byEmail)
	}

	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Email != u.Email {
		t.Fatalf("unexpected user: %+v", byID)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := &User{ID: uuid.NewString(), Email: "dup@example.com", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	if err := s.CreateUser(ctx, first); err != nil {
		t.Fatalf("create user: %v", err)
	}

	second := &User{ID: uuid.NewString(), Email: "dup@example.com", PasswordHash: "h2", CreatedAt: time.Now().UTC()}
	if err := s.CreateUser(ctx, second); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetUserByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestRecordOutcomeSuccessThenDuplicate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	traceID := uuid.NewString()
	rec := newPathRecord(uuid.NewString(), traceID)

	first, err := s.RecordOutcome(ctx, traceID, pathgen.OutcomeSucceeded, rec)
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if !first {
		t.Fatalf("first outcome not reported as first")
	}

	// A redelivered duplicate must be a no-op, not an error.
	dup := newPathRecord(rec.UserID, traceID)
	first, err = s.RecordOutcome(ctx, traceID, pathgen.OutcomeSucceeded, dup)
	if err != nil {
		t.Fatalf("duplicate outcome: %v", err)
	}
	if first {
		t.Fatalf("duplicate outcome reported as first")
	}

	got, err := s.GetPathByTraceID(ctx, traceID)
	if err != nil {
		t.Fatalf("get by trace: %v", err)
	}
	if got.ID != rec.ID {
		t.Fatalf("duplicate overwrote the record: got %s want %s", got.ID, rec.ID)
	}

	paths, err := s.ListPathsByUser(ctx, rec.UserID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("want exactly one record per trace, got %d", len(paths))
	}
}

func TestRecordOutcomeFailureLeavesNoPathRow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	traceID := uuid.NewString()
	first, err := s.RecordOutcome(ctx, traceID, pathgen.OutcomeFailed, nil)
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if !first {
		t.Fatalf("failure not reported as first terminal")
	}

	if _, err := s.GetPathByTraceID(ctx, traceID); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("failure must not create a path row, got err=%v", err)
	}
}

func TestRecordOutcomeFailureThenSuccessKeepsFirstWriter(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	traceID := uuid.NewString()
	if _, err := s.RecordOutcome(ctx, traceID, pathgen.OutcomeFailed, nil); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	// An out-of-order success for the same trace must not resurrect it.
	rec := newPathRecord(uuid.NewString(), traceID)
	first, err := s.RecordOutcome(ctx, traceID, pathgen.OutcomeSucceeded, rec)
	if err != nil {
		t.Fatalf("late success: %v", err)
	}
	if first {
		t.Fatalf("late success won the terminal slot")
	}
	if _, err := s.GetPathByTraceID(ctx, traceID); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("late success created a row, got err=%v", err)
	}
}

func TestListPathsByUserOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	userID := uuid.NewString()

	older := newPathRecord(userID, uuid.NewString())
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	older.Topic = "Go"
	newer := newPathRecord(userID, uuid.NewString())

	if _, err := s.RecordOutcome(ctx, older.TraceID, pathgen.OutcomeSucceeded, older); err != nil {
		t.Fatalf("record older: %v", err)
	}
	if _, err := s.RecordOutcome(ctx, newer.TraceID, pathgen.OutcomeSucceeded, newer); err != nil {
		t.Fatalf("record newer: %v", err)
	}

	paths, err := s.ListPathsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("want 2 records, got %d", len(paths))
	}
	if paths[0].TraceID != newer.TraceID {
		t.Fatalf("newest record not first")
	}
}

// Ordering is done lexicographically on the TEXT column, so the stored form
// must sort like the instants it encodes even when a timestamp falls on a
// whole second.
func TestListPathsByUserOrderWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	userID := uuid.NewString()

	wholeSecond := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	older := newPathRecord(userID, uuid.NewString())
	older.CreatedAt = wholeSecond
	newer := newPathRecord(userID, uuid.NewString())
	newer.CreatedAt = wholeSecond.Add(500 * time.Millisecond)

	if _, err := s.RecordOutcome(ctx, older.TraceID, pathgen.OutcomeSucceeded, older); err != nil {
		t.Fatalf("record older: %v", err)
	}
	if _, err := s.RecordOutcome(ctx, newer.TraceID, pathgen.OutcomeSucceeded, newer); err != nil {
		t.Fatalf("record newer: %v", err)
	}

	paths, err := s.ListPathsByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 2 || paths[0].TraceID != newer.TraceID {
		t.Fatalf("fractional-second record must sort newest first")
	}
}

func TestFormatTimeSortsChronologically(t *testing.T) {
	wholeSecond := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	times := []time.Time{
		wholeSecond,
		wholeSecond.Add(500 * time.Millisecond),
		wholeSecond.Add(999999999 * time.Nanosecond),
		wholeSecond.Add(time.Second),
	}

	for i := 1; i < len(times); i++ {
		a, b := formatTime(times[i-1]), formatTime(times[i])
		if !(a < b) {
			t.Fatalf("formatted order inverted: %q !< %q", a, b)
		}
	}

	for _, tm := range times {
		parsed, err := parseTime(formatTime(tm))
		if err != nil {
			t.Fatalf("round trip %v: %v", tm, err)
		}
		if !parsed.Equal(tm) {
			t.Fatalf("round trip changed %v to %v", tm, parsed)
		}
	}
}
