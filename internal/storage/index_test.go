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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	doc := "```diwan\n" +
		"title: معلقة\npoet: امرؤ القيس\ntags: جاهلي\n---\n" +
		"قفا نبك من ذكرى حبيب ومنزل | بسقط اللوى بين الدخول فحومل\n" +
		"```\n\n```diwan\n" +
		"title: حكمة\npoet: المتنبي\ntags: حكمة\n---\n" +
		"على قدر أهل العزم تأتي العزائم | وتأتي على قدر الكرام المكارم\n" +
		"```\n"
	if err := os.WriteFile(filepath.Join(dir, "diwan.md"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return dir
}

func TestInitOrOpenIndexCreatesSchema(t *testing.T) {
	dir := t.TempDir()
	db, err := InitOrOpenIndex(dir)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM poems").Scan(&n); err != nil {
		t.Fatalf("poems table missing: %v", err)
	}
	var schema int
	if err := db.QueryRow("SELECT schema FROM version WHERE id=1").Scan(&schema); err != nil {
		t.Fatalf("version row missing: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
	if _, err := os.Stat(IndexPath(dir)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
	// a fresh database carries all secondary indexes, not just upgraded ones
	for _, idx := range []string{"idx_poems_path", "idx_poems_poet", "idx_poems_path_ord"} {
		var one int
		if err := db.QueryRow("SELECT 1 FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&one); err != nil {
			t.Fatalf("index %s missing on fresh database: %v", idx, err)
		}
	}
}

func TestRebuildIndexFromWorkspace(t *testing.T) {
	dir := writeWorkspace(t)
	ctx := context.Background()
	if err := RebuildIndex(ctx, dir); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	db, err := InitOrOpenIndex(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM poems").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 indexed poems, got %d", n)
	}
	var poet string
	if err := db.QueryRow("SELECT poet FROM poems WHERE ord=1").Scan(&poet); err != nil {
		t.Fatalf("select: %v", err)
	}
	if poet != "المتنبي" {
		t.Fatalf("unexpected poet: %q", poet)
	}
}

func TestBuildIndexIfEmptyIsIdempotent(t *testing.T) {
	dir := writeWorkspace(t)
	ctx := context.Background()
	if err := BuildIndexIfEmpty(ctx, dir); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if err := BuildIndexIfEmpty(ctx, dir); err != nil {
		t.Fatalf("second build: %v", err)
	}
	db, err := InitOrOpenIndex(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM poems").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 poems after idempotent builds, got %d", n)
	}
}

func TestDetectAndRebuildCorruptIndex(t *testing.T) {
	dir := writeWorkspace(t)
	ctx := context.Background()
	if err := RebuildIndex(ctx, dir); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	// clobber the database file
	if err := os.WriteFile(IndexPath(dir), []byte("garbage, not sqlite"), 0o644); err != nil {
		t.Fatalf("clobber: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(ctx, dir)
	if err != nil {
		t.Fatalf("detect/rebuild: %v", err)
	}
	if !rebuilt {
		t.Fatalf("corrupt index must trigger a rebuild")
	}
	results, err := Search(ctx, dir, SearchQuery{Text: "العزم"})
	if err != nil {
		t.Fatalf("search after rebuild: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("rebuilt index must be searchable, got %+v", results)
	}
}

func TestDetectHealthyIndexNoRebuild(t *testing.T) {
	dir := writeWorkspace(t)
	ctx := context.Background()
	if err := RebuildIndex(ctx, dir); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(ctx, dir)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if rebuilt {
		t.Fatalf("healthy index must not be rebuilt")
	}
}

func TestSearchFTSAndFilters(t *testing.T) {
	dir := writeWorkspace(t)
	ctx := context.Background()
	if err := RebuildIndex(ctx, dir); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	results, err := Search(ctx, dir, SearchQuery{Text: "حبيب"})
	if err != nil {
		t.Fatalf("fts search: %v", err)
	}
	if len(results) != 1 || results[0].Poet != "امرؤ القيس" {
		t.Fatalf("unexpected fts results: %+v", results)
	}
	if !strings.Contains(results[0].Snippet, "[حبيب]") {
		t.Fatalf("snippet must highlight the match, got %q", results[0].Snippet)
	}

	results, err = Search(ctx, dir, SearchQuery{Poet: "المتنبي"})
	if err != nil {
		t.Fatalf("poet filter: %v", err)
	}
	if len(results) != 1 || results[0].Title != "حكمة" {
		t.Fatalf("unexpected poet results: %+v", results)
	}

	results, err = Search(ctx, dir, SearchQuery{Tags: []string{"جاهلي"}})
	if err != nil {
		t.Fatalf("tag filter: %v", err)
	}
	if len(results) != 1 || results[0].Title != "معلقة" {
		t.Fatalf("unexpected tag results: %+v", results)
	}

	results, err = Search(ctx, dir, SearchQuery{})
	if err != nil {
		t.Fatalf("unfiltered scan: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("unfiltered scan must return all poems: %+v", results)
	}

	results, err = Search(ctx, dir, SearchQuery{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("pagination: %v", err)
	}
	if len(results) != 1 || results[0].Ord != 1 {
		t.Fatalf("pagination wrong: %+v", results)
	}
}

func TestMigrationRebuildsContentlessFTS(t *testing.T) {
	dir := writeWorkspace(t)
	ctx := context.Background()
	if err := RebuildIndex(ctx, dir); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// regress the database to the old layout: contentless FTS at schema 2
	db, err := InitOrOpenIndex(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	old := []string{
		"DROP TRIGGER IF EXISTS poems_ai;",
		"DROP TRIGGER IF EXISTS poems_ad;",
		"DROP TRIGGER IF EXISTS poems_au;",
		"DROP TABLE IF EXISTS fts_poems;",
		"CREATE VIRTUAL TABLE fts_poems USING fts5(text, content='', tokenize='unicode61');",
		"INSERT INTO fts_poems(rowid, text) SELECT poem_id, text FROM poems;",
		"UPDATE version SET schema=2 WHERE id=1;",
	}
	for _, q := range old {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("regress schema: %v", err)
		}
	}
	_ = db.Close()

	// reopening migrates the FTS table; matches carry real snippets again
	results, err := Search(ctx, dir, SearchQuery{Text: "حبيب"})
	if err != nil {
		t.Fatalf("search after migration: %v", err)
	}
	if len(results) != 1 || !strings.Contains(results[0].Snippet, "[حبيب]") {
		t.Fatalf("migrated index must produce snippets: %+v", results)
	}

	db, err = InitOrOpenIndex(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	var schema int
	if err := db.QueryRow("SELECT schema FROM version WHERE id=1").Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
}

func TestSnapshotsLifecycle(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		text := string(rune('a' + i))
		if err := SaveSnapshot(ctx, dir, "diwan.md", text, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("save snapshot %d: %v", i, err)
		}
	}

	latest, err := LatestSnapshot(ctx, dir, "diwan.md")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Text != "e" {
		t.Fatalf("latest snapshot wrong: %+v", latest)
	}

	list, err := ListSnapshots(ctx, dir, "diwan.md", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Text != "e" || list[2].Text != "c" {
		t.Fatalf("list wrong: %+v", list)
	}

	removed, err := PruneOldSnapshots(ctx, dir, "diwan.md", 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 pruned, got %d", removed)
	}
	list, err = ListSnapshots(ctx, dir, "diwan.md", 10)
	if err != nil {
		t.Fatalf("list after prune: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 remaining, got %d", len(list))
	}

	// snapshots of other documents are untouched by path-scoped prune
	if err := SaveSnapshot(ctx, dir, "other.md", "x", base); err != nil {
		t.Fatalf("save other: %v", err)
	}
	if _, err := PruneOldSnapshots(ctx, dir, "diwan.md", 1); err != nil {
		t.Fatalf("prune diwan: %v", err)
	}
	other, err := LatestSnapshot(ctx, dir, "other.md")
	if err != nil || other.Text != "x" {
		t.Fatalf("other document snapshot lost: %+v %v", other, err)
	}
}

func TestLatestSnapshotEmpty(t *testing.T) {
	s, err := LatestSnapshot(context.Background(), t.TempDir(), "none.md")
	if err != nil {
		t.Fatalf("latest on empty: %v", err)
	}
	if s.Text != "" || !s.TS.IsZero() {
		t.Fatalf("expected zero snapshot, got %+v", s)
	}
}
