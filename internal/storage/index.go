/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"godiwan/internal/codec"
	"godiwan/internal/domain"
	applog "godiwan/internal/log"
	"godiwan/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 3
)

// FTS index over poems. External content: FTS5 stores only the inverted
// index and reads row text back from poems, which keeps the database small
// while still letting snippet() reconstruct the matched excerpt. The
// triggers keep it in sync with the poems table.
var ftsDDL = []string{
	`CREATE VIRTUAL TABLE IF NOT EXISTS fts_poems USING fts5(
		text,
		content='poems',
		content_rowid='poem_id',
		tokenize = 'unicode61'
	);`,
	`CREATE TRIGGER IF NOT EXISTS poems_ai AFTER INSERT ON poems BEGIN
		INSERT INTO fts_poems(rowid, text) VALUES (new.poem_id, new.text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS poems_ad AFTER DELETE ON poems BEGIN
		INSERT INTO fts_poems(fts_poems, rowid, text) VALUES ('delete', old.poem_id, old.text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS poems_au AFTER UPDATE OF text ON poems BEGIN
		INSERT INTO fts_poems(fts_poems, rowid, text) VALUES ('delete', old.poem_id, old.text);
		INSERT INTO fts_poems(rowid, text) VALUES (new.poem_id, new.text);
	END;`,
}

// IndexPath returns the full path to the workspace's index database file.
func IndexPath(root string) string {
	return filepath.Join(root, WorkspaceDirName, IndexFileName)
}

// InitOrOpenIndex ensures the per-workspace SQLite index exists, opens it,
// enables WAL mode and brings the schema up to date. The returned *sql.DB
// is ready for use; callers close it when no longer needed.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, WorkspaceDirName), 0o755); err != nil {
		l.Error("create workspace dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	path := IndexPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep existing schema for migrations, refresh app and timestamp
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_poems_poet ON poems(poet);`,
				`CREATE INDEX IF NOT EXISTS idx_poems_path_ord ON poems(path, ord);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_poems(fts_poems) VALUES('optimize')`); err != nil {
				// best-effort optimize; ignore errors
			}
		case 3:
			// Older databases carry a contentless fts_poems, which cannot
			// reconstruct text for snippet(). Rebuild it as external content
			// over poems and re-feed it from the surviving rows.
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`DROP TRIGGER IF EXISTS poems_ai;`,
				`DROP TRIGGER IF EXISTS poems_ad;`,
				`DROP TRIGGER IF EXISTS poems_au;`,
				`DROP TABLE IF EXISTS fts_poems;`,
			}
			stmts = append(stmts, ftsDDL...)
			stmts = append(stmts, `INSERT INTO fts_poems(rowid, text) SELECT poem_id, text FROM poems;`)
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
		default:
			// unknown future step
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the poem tables and FTS structures if missing.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per diwan block found in the workspace documents.
		`CREATE TABLE IF NOT EXISTS poems (
			poem_id     INTEGER PRIMARY KEY,
			path        TEXT    NOT NULL,
			ord         INTEGER NOT NULL,
			title       TEXT,
			poet        TEXT,
			tags        TEXT,
			verse_count INTEGER NOT NULL,
			text        TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_poems_path ON poems(path);`,
		`CREATE INDEX IF NOT EXISTS idx_poems_poet ON poems(poet);`,
		`CREATE INDEX IF NOT EXISTS idx_poems_path_ord ON poems(path, ord);`,

		// History of poem block text for change tracking.
		`CREATE TABLE IF NOT EXISTS snapshots (
			id    INTEGER PRIMARY KEY,
			path  TEXT    NOT NULL,
			ts    TEXT    NOT NULL,
			text  TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_path_ts ON snapshots(path, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	for _, q := range ftsDDL {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts schema: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds
// the index from the workspace documents if needed. It returns true when a
// rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, root string) (bool, error) {
	path := IndexPath(root)
	db, err := InitOrOpenIndex(root)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := RebuildIndex(ctx, root); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	defer db.Close()
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM poems LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	_ = os.Remove(path)
	if err := RebuildIndex(ctx, root); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the index into a timestamped backup before a
// destructive rebuild.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// BuildIndexIfEmpty populates the index from the workspace documents when
// the poems table has no rows yet.
func BuildIndexIfEmpty(ctx context.Context, root string) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM poems;").Scan(&cnt); err != nil {
		return fmt.Errorf("check poems count: %w", err)
	}
	if cnt > 0 {
		return nil
	}
	return rebuildPoemsFromWorkspace(ctx, db, root)
}

// UpdateIndex refreshes the index content from the workspace documents.
func UpdateIndex(ctx context.Context, root string) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildPoemsFromWorkspace(ctx, db, root)
}

// RebuildIndex drops and recreates the poem tables and repopulates them
// from the workspace. Meta, version and snapshots survive; the index is
// derived from the documents and rebuilding it loses nothing.
func RebuildIndex(ctx context.Context, root string) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TRIGGER IF EXISTS poems_ai;",
		"DROP TRIGGER IF EXISTS poems_ad;",
		"DROP TRIGGER IF EXISTS poems_au;",
		"DROP TABLE IF EXISTS poems;",
		"DROP TABLE IF EXISTS fts_poems;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildPoemsFromWorkspace(ctx, db, root)
}

// rebuildPoemsFromWorkspace replaces the poems table content by scanning
// every Markdown document under root for diwan blocks.
func rebuildPoemsFromWorkspace(ctx context.Context, db *sql.DB, root string) error {
	docs, err := ListDocuments(root)
	if err != nil {
		return err
	}
	type row struct {
		path       string
		ord        int
		title      string
		poet       string
		tags       string
		verseCount int
		text       string
	}
	rows := make([]row, 0, 64)
	for _, path := range docs {
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			rel = path
		}
		for _, blk := range FindBlocks(string(b)) {
			p := codec.Parse(blk.Content)
			rows = append(rows, row{
				path:       filepath.ToSlash(rel),
				ord:        blk.Ord,
				title:      p.Title,
				poet:       p.Poet,
				tags:       strings.Join(p.Tags, ", "),
				verseCount: len(p.Verses),
				text:       searchText(p),
			})
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM poems;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear poems: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO poems(path, ord, title, poet, tags, verse_count, text) VALUES(?,?,?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, r.path, r.ord, r.title, r.poet, r.tags, r.verseCount, r.text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert poem: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// searchText flattens the searchable surface of a poem into one FTS blob:
// title, poet, tags, verse text and annotation notes.
func searchText(p *domain.Poem) string {
	var b strings.Builder
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(s)
		}
	}
	add(p.Title)
	add(p.Poet)
	add(strings.Join(p.Tags, " "))
	for _, v := range p.Verses {
		add(v.Sadr)
		add(v.Ajaz)
	}
	for _, a := range p.Annotations {
		add(a.Text)
		add(a.Note)
	}
	return b.String()
}
