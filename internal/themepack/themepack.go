/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package themepack manages shareable HTML render themes: plain CSS files
// living under the workspace themes directory, exchanged as zip archives.
package themepack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "godiwan/internal/log"
	"godiwan/internal/storage"
)

// ThemesDirName is the themes folder under the workspace dir.
const ThemesDirName = "themes"

const manifestName = "themepack.manifest.txt"

func themesDir(root string) string {
	return filepath.Join(root, storage.WorkspaceDirName, ThemesDirName)
}

// LoadTheme reads the CSS of a named theme. The name maps to
// <workspace>/themes/<name>.css.
func LoadTheme(root, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("theme name is required")
	}
	b, err := os.ReadFile(filepath.Join(themesDir(root), name+".css"))
	if err != nil {
		return "", fmt.Errorf("load theme %q: %w", name, err)
	}
	return string(b), nil
}

// SaveTheme writes (or overwrites) a named theme's CSS.
func SaveTheme(root, name, css string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("theme name is required")
	}
	dir := themesDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure themes dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name+".css"), []byte(css), 0o644)
}

// ListThemes returns the installed theme names, sorted.
func ListThemes(root string) ([]string, error) {
	ents, err := os.ReadDir(themesDir(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".css") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".css"))
	}
	sort.Strings(names)
	return names, nil
}

// ExportThemes zips the workspace themes directory into a single .zip file.
// The archive preserves the directory structure and adds a small manifest
// file at the root for quick human inspection. An empty themes directory
// still produces an archive with only the manifest.
func ExportThemes(root string, destZipPath string) error {
	l := applog.WithOperation(applog.WithComponent("themepack"), "export").With(slog.String("workspace", root))
	if strings.TrimSpace(root) == "" {
		return errors.New("workspace root is required")
	}
	if strings.TrimSpace(destZipPath) == "" {
		return errors.New("destZipPath is required")
	}
	dir := themesDir(root)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure themes dir: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o755); err != nil {
		return fmt.Errorf("ensure zip dir: %w", err)
	}
	// On Windows, remove destination if present before create
	_ = os.Remove(destZipPath)

	zf, err := os.Create(destZipPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)
	defer func() { _ = zw.Close() }()

	manifest := fmt.Sprintf("GoDiwan Theme Pack\nCreated: %s\nWorkspace: %s\n\nContents mirror the workspace themes directory.\n",
		time.Now().Format(time.RFC3339), root)
	w, err := zw.Create(manifestName)
	if err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if _, err := w.Write([]byte(manifest)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	added := 0
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		// forward slashes inside the zip
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(fw, f); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		return fmt.Errorf("build zip: %w", err)
	}
	l.Info("theme pack exported", slog.Int("files", added), slog.String("zip", destZipPath))
	return nil
}

// InstallPack extracts a theme pack zip into the workspace themes
// directory. Existing files are not overwritten; entries escaping the
// themes directory are rejected. Returns the count of files installed.
func InstallPack(root string, packZipPath string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("themepack"), "install").With(slog.String("workspace", root))
	if strings.TrimSpace(root) == "" {
		return 0, errors.New("workspace root is required")
	}
	if strings.TrimSpace(packZipPath) == "" {
		return 0, errors.New("packZipPath is required")
	}
	dir := themesDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure themes dir: %w", err)
	}

	r, err := zip.OpenReader(packZipPath)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	installed := 0
	for _, f := range r.File {
		name := f.Name
		if name == manifestName {
			continue
		}
		targetPath := filepath.Join(dir, filepath.FromSlash(name))
		// zip-slip guard
		if rel, err := filepath.Rel(dir, targetPath); err != nil || strings.HasPrefix(rel, "..") {
			l.Warn("skip entry escaping themes dir", slog.String("name", name))
			continue
		}
		if _, err := os.Stat(targetPath); err == nil {
			l.Warn("skip existing file", slog.String("path", targetPath))
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return installed, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return installed, err
		}
		rc, err := f.Open()
		if err != nil {
			return installed, err
		}
		out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			_ = rc.Close()
			return installed, err
		}
		if _, err := io.Copy(out, rc); err != nil {
			_ = out.Close()
			_ = rc.Close()
			return installed, err
		}
		_ = out.Close()
		_ = rc.Close()
		installed++
	}
	l.Info("theme pack installed", slog.Int("files", installed))
	return installed, nil
}
