/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(path, ts, text) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, text FROM snapshots WHERE path = ? ORDER BY ts DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, text FROM snapshots WHERE path = ? ORDER BY ts DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE path = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE path = ? ORDER BY ts DESC LIMIT ?
)`

// Snapshot is one historical version of a document's serialized block text.
type Snapshot struct {
	TS   time.Time
	Text string
}

// SaveSnapshot persists the full block text of a document with a timestamp.
// The index database is derived; this history is for editor change
// tracking, not canonical storage.
func SaveSnapshot(ctx context.Context, root, path, text string, ts time.Time) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("document path is required")
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertSnapshotSQL, path, ts.UTC().Format(time.RFC3339Nano), text)
	return err
}

// LatestSnapshot returns the newest snapshot for a document, or a zero
// Snapshot when none exists.
func LatestSnapshot(ctx context.Context, root, path string) (Snapshot, error) {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = db.Close() }()
	var tsStr, txt string
	err = db.QueryRowContext(ctx, selectLatestSnapshotSQL, path).Scan(&tsStr, &txt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	ts, perr := time.Parse(time.RFC3339Nano, tsStr)
	if perr != nil {
		return Snapshot{Text: txt}, nil
	}
	return Snapshot{TS: ts, Text: txt}, nil
}

// ListSnapshots returns up to limit most recent snapshots for a document.
func ListSnapshots(ctx context.Context, root, path string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listSnapshotsSQL, path, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var tsStr, txt string
		if err := rows.Scan(&tsStr, &txt); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, Snapshot{TS: ts, Text: txt})
	}
	return out, rows.Err()
}

// PruneOldSnapshots keeps at most keepLast snapshots of a document and
// deletes older ones. It returns the number of rows removed.
func PruneOldSnapshots(ctx context.Context, root, path string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldSnapshotsSQL, path, path, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
