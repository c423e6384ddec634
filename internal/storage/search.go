/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes an in-workspace search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Poet and Tags are optional filters; every given tag must match.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text   string
	Poet   string
	Tags   []string
	Limit  int
	Offset int
}

// SearchResult is a single matching diwan block. Snippet is a highlighted
// excerpt using [ ] markers when FTS text was used.
type SearchResult struct {
	PoemID     int64
	Path       string
	Ord        int
	Title      string
	Poet       string
	VerseCount int
	Snippet    string
}

// Search performs full-text search with optional filters over the embedded
// index. With empty q.Text it falls back to a plain scan with filters only.
func Search(ctx context.Context, root string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT p.poem_id, p.path, p.ord, COALESCE(p.title,''), COALESCE(p.poet,''), p.verse_count, snippet(fts_poems, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_poems JOIN poems p ON fts_poems.rowid = p.poem_id\n")
		sb.WriteString("WHERE fts_poems MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT p.poem_id, p.path, p.ord, COALESCE(p.title,''), COALESCE(p.poet,''), p.verse_count, ''\n")
		sb.WriteString("FROM poems p\nWHERE 1=1\n")
	}
	if s := strings.TrimSpace(q.Poet); s != "" {
		sb.WriteString(" AND lower(p.poet) LIKE ?\n")
		args = append(args, likeContains(strings.ToLower(s)))
	}
	for _, t := range q.Tags {
		tt := strings.ToLower(strings.TrimSpace(t))
		if tt == "" {
			continue
		}
		sb.WriteString(" AND lower(p.tags) LIKE ?\n")
		args = append(args, likeContains(tt))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY p.path, p.ord\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.PoemID, &r.Path, &r.Ord, &r.Title, &r.Poet, &r.VerseCount, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func likeContains(s string) string { return "%" + s + "%" }
