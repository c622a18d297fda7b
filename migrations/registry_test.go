package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func moduleRoot() fs.FS {
	return os.DirFS("..")
}

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems(moduleRoot())
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
			if entry.Path != "data/sql/migrations" {
				t.Fatalf("unexpected postgres path %q", entry.Path)
			}
		case DialectSQLite:
			sqliteFound = true
			if entry.Path != "data/sql/migrations/sqlite" {
				t.Fatalf("unexpected sqlite path %q", entry.Path)
			}
		}
	}
	if !postgresFound || !sqliteFound {
		t.Fatalf("expected postgres and sqlite filesystems, got %+v", filesystems)
	}
}

func TestFilesystems_RequiresSource(t *testing.T) {
	if _, err := Filesystems(nil); err == nil {
		t.Fatalf("expected nil source to fail")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		calls = append(calls, dialect+":"+label)
		return nil
	}, WithSource(moduleRoot()), WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != "sqlite:go-social-links" {
		t.Fatalf("expected one sqlite registration, got %v", calls)
	}
	if len(reg.Filesystems) != 2 {
		t.Fatalf("expected both dialects resolved, got %d", len(reg.Filesystems))
	}
}

func TestRegister_RejectsMissingInputs(t *testing.T) {
	noop := func(context.Context, string, string, fs.FS) error { return nil }
	if _, err := Register(context.Background(), noop); err == nil {
		t.Fatalf("expected missing filesystems to fail")
	}
	if _, err := Register(context.Background(), nil, WithSource(moduleRoot())); err == nil {
		t.Fatalf("expected missing register function to fail")
	}
	if _, err := Register(context.Background(), noop, WithSource(moduleRoot()), WithDialectSourceLabel("custom")); err != nil {
		t.Fatalf("expected custom label to register: %v", err)
	}
}

func TestSocialAccountLinksMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := moduleRoot()
	paths := []string{
		"data/sql/migrations/00001_social_account_links.up.sql",
		"data/sql/migrations/00001_social_account_links.down.sql",
		"data/sql/migrations/sqlite/00001_social_account_links.up.sql",
		"data/sql/migrations/sqlite/00001_social_account_links.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteSocialAccountLinksMigration_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-social-links?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(moduleRoot(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_social_account_links.up.sql"); err != nil {
		t.Fatalf("apply up migration: %v", err)
	}

	insert := `INSERT INTO social_account_links (id, user_id, platform, platform_account_id, access_token) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "l1", "usr_1", "twitter", "tw_1", "cipher"); err != nil {
		t.Fatalf("insert first link: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "l2", "usr_2", "twitter", "tw_1", "cipher"); err == nil {
		t.Fatalf("expected unique (platform, platform_account_id) violation")
	}
	if _, err := db.ExecContext(ctx, insert, "l3", "usr_2", "myspace", "ms_1", "cipher"); err == nil {
		t.Fatalf("expected platform check violation")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_social_account_links.down.sql"); err != nil {
		t.Fatalf("apply down migration: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'social_account_links'",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected table dropped after rollback")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
