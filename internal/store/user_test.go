package store

import (
	"context"
	"testing"

	"github.com/dukerupert/outofoffice/internal/database"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)
	ctx := context.Background()

	u, err := us.Create(ctx, "alice@example.com", "alice", "Alice", "de")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Username != "alice" {
		t.Errorf("username = %q, want %q", u.Username, "alice")
	}
	if u.Locale != "de" {
		t.Errorf("locale = %q, want %q", u.Locale, "de")
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDefaultLocale(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create(context.Background(), "alice@example.com", "alice", "Alice", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Locale != "en" {
		t.Errorf("locale = %q, want %q", u.Locale, "en")
	}
}

func TestUserCreateDuplicate(t *testing.T) {
	us := setupUserTestDB(t)
	ctx := context.Background()

	if _, err := us.Create(ctx, "alice@example.com", "alice", "Alice", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create(ctx, "alice@example.com", "alice2", "Alice", ""); err == nil {
		t.Error("expected error for duplicate email, got nil")
	}
	if _, err := us.Create(ctx, "other@example.com", "alice", "Alice", ""); err == nil {
		t.Error("expected error for duplicate username, got nil")
	}
}

func TestUserGetByID(t *testing.T) {
	us := setupUserTestDB(t)
	ctx := context.Background()

	created, err := us.Create(ctx, "alice@example.com", "alice", "Alice", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := us.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.Username != "alice" {
		t.Errorf("username = %q, want %q", u.Username, "alice")
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := setupUserTestDB(t)
	ctx := context.Background()

	if _, err := us.Create(ctx, "alice@example.com", "alice", "Alice", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := us.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.Username != "alice" {
		t.Errorf("got %+v, want user alice", u)
	}

	missing, err := us.GetByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserDelete(t *testing.T) {
	us := setupUserTestDB(t)
	ctx := context.Background()

	u, err := us.Create(ctx, "alice@example.com", "alice", "Alice", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := us.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	got, err := us.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Error("expected user to be deleted")
	}
}
