/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists diwan content. The canonical store is the
// Markdown documents themselves; the SQLite index, snapshots and backups
// under the workspace dir are derived data that can always be rebuilt.
package storage

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// WorkspaceDirName holds all derived per-workspace data (index,
	// backups, exports) next to the documents.
	WorkspaceDirName = ".godiwan"
	BackupsDirName   = "backups"
	ExportsDirName   = "exports"
)

// DocumentHandle is an open Markdown document containing diwan blocks.
type DocumentHandle struct {
	Path string
	Text string
}

// workspaceDir locates the derived-data dir next to a document.
func workspaceDir(docPath string) string {
	return filepath.Join(filepath.Dir(docPath), WorkspaceDirName)
}

// OpenDocument reads a Markdown document. If the file is unreadable, the
// latest backup is tried before giving up.
func OpenDocument(path string) (*DocumentHandle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		text, berr := readLatestBackup(path)
		if berr != nil {
			return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
		}
		return &DocumentHandle{Path: path, Text: text}, nil
	}
	return &DocumentHandle{Path: path, Text: string(b)}, nil
}

// SaveDocument writes the document back with transactional semantics: the
// previous content is copied to a timestamped backup, the new content goes
// to a temp file in the same directory and is renamed over the target.
func SaveDocument(h *DocumentHandle) error {
	if h == nil {
		return errors.New("nil DocumentHandle")
	}
	if h.Path == "" {
		return errors.New("invalid DocumentHandle: missing path")
	}
	bdir := filepath.Join(workspaceDir(h.Path), BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(h.Path); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bname := fmt.Sprintf("%s.%s.bak", filepath.Base(h.Path), stamp)
		if cerr := copyFile(h.Path, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}

	dir := filepath.Dir(h.Path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(h.Path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, []byte(h.Text)); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// On Windows, rename cannot replace an existing file
	if _, err := os.Stat(h.Path); err == nil {
		_ = os.Remove(h.Path)
	}
	if rerr := os.Rename(temp, h.Path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	return nil
}

// ListDocuments returns the Markdown files directly under root, sorted by
// name. The workspace dir and dotfiles are skipped.
func ListDocuments(root string) ([]string, error) {
	ents, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".markdown") {
			out = append(out, filepath.Join(root, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// AutosaveCrashSnapshot writes the in-memory document text to a separate
// autosave file in the backups dir, bypassing the normal save path. Used by
// the crash handler, where the document itself must not be touched.
func AutosaveCrashSnapshot(h *DocumentHandle) (string, error) {
	if h == nil {
		return "", errors.New("nil DocumentHandle")
	}
	bdir := filepath.Join(workspaceDir(h.Path), BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(bdir, fmt.Sprintf("autosave-%s.%s", stamp, filepath.Base(h.Path)))
	if err := writeFileSync(path, []byte(h.Text)); err != nil {
		return "", fmt.Errorf("write autosave: %w", err)
	}
	return path, nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	if err := df.Sync(); err != nil {
		return err
	}
	return nil
}

// readLatestBackup returns the newest timestamped backup of the document.
func readLatestBackup(docPath string) (string, error) {
	bdir := filepath.Join(workspaceDir(docPath), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return "", fmt.Errorf("read backups dir: %w", err)
	}
	base := filepath.Base(docPath)
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, base+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return "", errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return "", fmt.Errorf("read latest backup: %w", err)
	}
	return string(b), nil
}
