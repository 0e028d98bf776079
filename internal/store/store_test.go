package store

import (
	"path/filepath"
	"testing"

	"github.com/dukerupert/pantry/internal/database"
	"github.com/dukerupert/pantry/internal/model"
)

type testStores struct {
	users      *UserStore
	sessions   *SessionStore
	categories *CategoryStore
	groceries  *GroceryStore
	shopping   *ShoppingStore
	recipes    *RecipeStore
	push       *PushStore
	backups    *BackupStore
}

func setupTestDB(t *testing.T) testStores {
	t.Helper()
	return openTestStores(t, ":memory:")
}

// setupFileDB opens a file-backed database, which unlike ":memory:" allows
// several connections to run statements at once.
func setupFileDB(t *testing.T) testStores {
	t.Helper()
	return openTestStores(t, filepath.Join(t.TempDir(), "pantry.db"))
}

func openTestStores(t *testing.T, path string) testStores {
	t.Helper()
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return testStores{
		users:      NewUserStore(db),
		sessions:   NewSessionStore(db),
		categories: NewCategoryStore(db),
		groceries:  NewGroceryStore(db),
		shopping:   NewShoppingStore(db),
		recipes:    NewRecipeStore(db),
		push:       NewPushStore(db),
		backups:    NewBackupStore(db),
	}
}

func mustUser(t *testing.T, s testStores, username string) *model.User {
	t.Helper()
	u, err := s.users.Create(username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func mustCategory(t *testing.T, s testStores, name string) *model.Category {
	t.Helper()
	c, err := s.categories.GetByName(name)
	if err != nil || c == nil {
		t.Fatalf("get category %q: %v", name, err)
	}
	return c
}

func mustGrocery(t *testing.T, s testStores, userID int64, name string, expiry model.Date) *model.GroceryItem {
	t.Helper()
	cat := mustCategory(t, s, "Other")
	g, err := s.groceries.Create(userID, cat.ID, name, expiry, 1)
	if err != nil {
		t.Fatalf("create grocery: %v", err)
	}
	return g
}
