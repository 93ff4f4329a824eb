package store

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"
)

// Every user has a signup-bonus ledger row from the moment it is
// registered, so removing a user must cascade through every table
// that references users(id). A plain REFERENCES here would make
// admin user removal fail with a foreign key violation.
func TestUserReferencesCascadeOnDelete(t *testing.T) {
	userFK := regexp.MustCompile(`REFERENCES users\(id\)[^,\n]*`)

	entries, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no up migrations embedded")
	}

	found := 0
	for _, name := range entries {
		sql, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		for _, ref := range userFK.FindAllString(string(sql), -1) {
			found++
			if !strings.Contains(ref, "ON DELETE CASCADE") {
				t.Errorf("%s: %q must declare ON DELETE CASCADE", name, ref)
			}
		}
	}
	// tasks, submissions, withdrawals, payments, coin_ledger.
	if found < 5 {
		t.Errorf("user foreign keys found: got %d, want at least 5", found)
	}
}
