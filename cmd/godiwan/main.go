/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"godiwan/internal/backend"
	"godiwan/internal/codec"
	"godiwan/internal/config"
	"godiwan/internal/crash"
	"godiwan/internal/domain"
	"godiwan/internal/export"
	applog "godiwan/internal/log"
	"godiwan/internal/render"
	"godiwan/internal/storage"
	"godiwan/internal/telemetry"
	"godiwan/internal/themepack"
	"godiwan/internal/version"
)

func usage() {
	fmt.Println("GoDiwan — bilingual verse workbench")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  godiwan version|-v|--version                 Show version")
	fmt.Println("  godiwan new <doc.md> [title] [poet]          Append a fresh diwan block to <doc.md>")
	fmt.Println("  godiwan list <dir>                           List markdown documents in <dir>")
	fmt.Println("  godiwan fmt <doc.md>                         Normalize all diwan blocks in place")
	fmt.Println("  godiwan render <doc.md> <ord> [out.html]     Render block <ord> (1-based) to HTML")
	fmt.Println("  godiwan export-pdf <doc.md> <ord> <out.pdf> [font.ttf]")
	fmt.Println("                                               Export block <ord> to PDF")
	fmt.Println("  godiwan index <dir> [rebuild|check]          Build or repair the workspace search index")
	fmt.Println("  godiwan search <dir> <text> [poet]           Full-text search over the workspace")
	fmt.Println("  godiwan snapshot <dir> <doc.md> [list|prune] Save/list/prune document snapshots")
	fmt.Println("  godiwan serve                                Run the poem library server")
	fmt.Println("  godiwan login <subject>                      Fetch a library token and store it")
	fmt.Println("  godiwan publish <doc.md> <ord> [stable-id]   Publish block <ord> to the library")
	fmt.Println("  godiwan library [<id>]                       List library poems, or fetch one source")
	fmt.Println("  godiwan remote-search <text> [poet]          Search the shared library")
	fmt.Println("  godiwan theme list|export <dir> <pack.zip>|install <dir> <pack.zip>")
	fmt.Println("                                               Manage HTML render themes")
}

func fail(l *slog.Logger, what string, err error) {
	l.Error(what, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

// blockAt returns the 1-based ord-th diwan block of the document.
func blockAt(h *storage.DocumentHandle, ord int) (storage.Block, error) {
	blocks := storage.FindBlocks(h.Text)
	if ord < 1 || ord > len(blocks) {
		return storage.Block{}, fmt.Errorf("document has %d diwan block(s), ord %d out of range", len(blocks), ord)
	}
	return blocks[ord-1], nil
}

func libraryClient(l *slog.Logger) *backend.Client {
	cfg, token, err := config.Load()
	if err != nil {
		fail(l, "config load failed", err)
	}
	return backend.NewClient(cfg.Backend.BaseURL, token)
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var doc *storage.DocumentHandle
	defer func() { crash.Recover(doc) }()
	telemetry.InitDefault()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	ctx := context.Background()

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("GoDiwan — bilingual verse workbench")
		fmt.Println(version.String())
		return

	case "new":
		if len(args) < 3 {
			fmt.Println("new requires <doc.md>")
			usage()
			os.Exit(2)
		}
		path, _ := filepath.Abs(args[2])
		cfg, _, err := config.Load()
		if err != nil {
			fail(l, "config load failed", err)
		}
		h, err := storage.OpenDocument(path)
		if err != nil {
			// a new document is fine
			h = &storage.DocumentHandle{Path: path}
		}
		doc = h
		p := domain.NewPoem()
		p.Layout = domain.ParseLayout(cfg.General.DefaultLayout)
		p.Size = domain.ParseSize(cfg.General.DefaultSize)
		p.Numbered = cfg.General.DefaultNumbered
		if len(args) > 3 {
			p.Title = args[3]
		}
		if len(args) > 4 {
			p.Poet = args[4]
		}
		h.Text = storage.AppendBlock(h.Text, codec.Serialize(p))
		if err := storage.SaveDocument(h); err != nil {
			fail(l, "save failed", err)
		}
		l.Info("block appended", slog.String("doc", path))
		telemetry.Event("poem_created", nil)
		fmt.Println("Appended new diwan block to", path)
		return

	case "list":
		if len(args) < 3 {
			fmt.Println("list requires <dir>")
			usage()
			os.Exit(2)
		}
		root, _ := filepath.Abs(args[2])
		paths, err := storage.ListDocuments(root)
		if err != nil {
			fail(l, "list failed", err)
		}
		for _, p := range paths {
			rel, _ := filepath.Rel(root, p)
			h, err := storage.OpenDocument(p)
			if err != nil {
				fmt.Printf("%s (unreadable: %v)\n", rel, err)
				continue
			}
			fmt.Printf("%s — %d block(s)\n", rel, len(storage.FindBlocks(h.Text)))
		}
		return

	case "fmt":
		if len(args) < 3 {
			fmt.Println("fmt requires <doc.md>")
			usage()
			os.Exit(2)
		}
		path, _ := filepath.Abs(args[2])
		h, err := storage.OpenDocument(path)
		if err != nil {
			fail(l, "open failed", err)
		}
		doc = h
		changed := 0
		for _, b := range storage.FindBlocks(h.Text) {
			norm := codec.Serialize(codec.Parse(b.Content))
			if strings.TrimRight(norm, "\n") == strings.TrimRight(b.Content, "\n") {
				continue
			}
			next, err := storage.ReplaceBlock(h.Text, b.Content, norm)
			if err != nil {
				fail(l, "replace failed", err)
			}
			h.Text = next
			changed++
		}
		if changed > 0 {
			if err := storage.SaveDocument(h); err != nil {
				fail(l, "save failed", err)
			}
		}
		l.Info("fmt done", slog.String("doc", path), slog.Int("changed", changed))
		fmt.Printf("Normalized %d block(s) in %s\n", changed, path)
		return

	case "render":
		if len(args) < 4 {
			fmt.Println("render requires <doc.md> and <ord>")
			usage()
			os.Exit(2)
		}
		path, _ := filepath.Abs(args[2])
		ord, err := strconv.Atoi(args[3])
		if err != nil {
			fail(l, "bad ord", err)
		}
		h, err := storage.OpenDocument(path)
		if err != nil {
			fail(l, "open failed", err)
		}
		doc = h
		b, err := blockAt(h, ord)
		if err != nil {
			fail(l, "block lookup failed", err)
		}
		p := codec.Parse(b.Content)
		cfg, _, err := config.Load()
		if err != nil {
			fail(l, "config load failed", err)
		}
		css := ""
		if cfg.General.Theme != "" {
			css, err = themepack.LoadTheme(filepath.Dir(path), cfg.General.Theme)
			if err != nil {
				l.Warn("theme not found, using built-in", slog.String("theme", cfg.General.Theme))
				css = ""
			}
		}
		html := render.Document(p, css)
		if len(args) > 4 {
			out, _ := filepath.Abs(args[4])
			if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
				fail(l, "write failed", err)
			}
			fmt.Println("Rendered to", out)
		} else {
			fmt.Print(html)
		}
		return

	case "export-pdf":
		if len(args) < 5 {
			fmt.Println("export-pdf requires <doc.md>, <ord> and <out.pdf>")
			usage()
			os.Exit(2)
		}
		path, _ := filepath.Abs(args[2])
		ord, err := strconv.Atoi(args[3])
		if err != nil {
			fail(l, "bad ord", err)
		}
		h, err := storage.OpenDocument(path)
		if err != nil {
			fail(l, "open failed", err)
		}
		doc = h
		b, err := blockAt(h, ord)
		if err != nil {
			fail(l, "block lookup failed", err)
		}
		opt := export.PDFOptions{}
		if len(args) > 5 {
			opt.FontPath = args[5]
		}
		p := codec.Parse(b.Content)
		if err := export.ExportPoemPDF(filepath.Dir(path), p, args[4], opt); err != nil {
			fail(l, "pdf export failed", err)
		}
		telemetry.Event("pdf_exported", map[string]any{"verses": len(p.Verses)})
		fmt.Println("Exported PDF")
		return

	case "index":
		if len(args) < 3 {
			fmt.Println("index requires <dir>")
			usage()
			os.Exit(2)
		}
		root, _ := filepath.Abs(args[2])
		mode := "build"
		if len(args) > 3 {
			mode = args[3]
		}
		switch mode {
		case "build":
			if err := storage.BuildIndexIfEmpty(ctx, root); err != nil {
				fail(l, "index build failed", err)
			}
			fmt.Println("Index ready at", storage.IndexPath(root))
		case "rebuild":
			if err := storage.RebuildIndex(ctx, root); err != nil {
				fail(l, "index rebuild failed", err)
			}
			fmt.Println("Index rebuilt")
		case "check":
			rebuilt, err := storage.DetectAndRebuildIndex(ctx, root)
			if err != nil {
				fail(l, "index check failed", err)
			}
			if rebuilt {
				fmt.Println("Index was corrupt and has been rebuilt")
			} else {
				fmt.Println("Index healthy")
			}
		default:
			fmt.Println("index mode must be build, rebuild or check")
			os.Exit(2)
		}
		return

	case "search":
		if len(args) < 4 {
			fmt.Println("search requires <dir> and <text>")
			usage()
			os.Exit(2)
		}
		root, _ := filepath.Abs(args[2])
		q := storage.SearchQuery{Text: args[3]}
		if len(args) > 4 {
			q.Poet = args[4]
		}
		if err := storage.UpdateIndex(ctx, root); err != nil {
			fail(l, "index update failed", err)
		}
		hits, err := storage.Search(ctx, root, q)
		if err != nil {
			fail(l, "search failed", err)
		}
		for _, h := range hits {
			fmt.Printf("%s#%d  %s — %s\n    %s\n", h.Path, h.Ord, h.Title, h.Poet, h.Snippet)
		}
		fmt.Printf("%d hit(s)\n", len(hits))
		return

	case "snapshot":
		if len(args) < 4 {
			fmt.Println("snapshot requires <dir> and <doc.md>")
			usage()
			os.Exit(2)
		}
		root, _ := filepath.Abs(args[2])
		path, _ := filepath.Abs(args[3])
		rel, err := filepath.Rel(root, path)
		if err != nil {
			fail(l, "document outside workspace", err)
		}
		rel = filepath.ToSlash(rel)
		mode := "save"
		if len(args) > 4 {
			mode = args[4]
		}
		switch mode {
		case "save":
			h, err := storage.OpenDocument(path)
			if err != nil {
				fail(l, "open failed", err)
			}
			doc = h
			if err := storage.SaveSnapshot(ctx, root, rel, h.Text, time.Now()); err != nil {
				fail(l, "snapshot failed", err)
			}
			fmt.Println("Snapshot saved")
		case "list":
			snaps, err := storage.ListSnapshots(ctx, root, rel, 0)
			if err != nil {
				fail(l, "snapshot list failed", err)
			}
			for _, s := range snaps {
				fmt.Printf("%s  %d bytes\n", s.TS, len(s.Text))
			}
			fmt.Printf("%d snapshot(s)\n", len(snaps))
		case "prune":
			n, err := storage.PruneOldSnapshots(ctx, root, rel, 10)
			if err != nil {
				fail(l, "snapshot prune failed", err)
			}
			fmt.Printf("Pruned %d snapshot(s), kept the latest 10\n", n)
		default:
			fmt.Println("snapshot mode must be save, list or prune")
			os.Exit(2)
		}
		return

	case "serve":
		l.Info("starting library server")
		if err := backend.Start(); err != nil {
			fail(l, "server failed", err)
		}
		return

	case "login":
		if len(args) < 3 {
			fmt.Println("login requires <subject>")
			usage()
			os.Exit(2)
		}
		cfg, _, err := config.Load()
		if err != nil {
			fail(l, "config load failed", err)
		}
		c := backend.NewClient(cfg.Backend.BaseURL, "")
		token, err := c.FetchToken(ctx, args[2], 24*time.Hour)
		if err != nil {
			fail(l, "token fetch failed", err)
		}
		if err := config.Save(cfg, token); err != nil {
			fail(l, "token store failed", err)
		}
		fmt.Println("Token stored for", args[2])
		return

	case "publish":
		if len(args) < 4 {
			fmt.Println("publish requires <doc.md> and <ord>")
			usage()
			os.Exit(2)
		}
		path, _ := filepath.Abs(args[2])
		ord, err := strconv.Atoi(args[3])
		if err != nil {
			fail(l, "bad ord", err)
		}
		h, err := storage.OpenDocument(path)
		if err != nil {
			fail(l, "open failed", err)
		}
		doc = h
		b, err := blockAt(h, ord)
		if err != nil {
			fail(l, "block lookup failed", err)
		}
		stableID := ""
		if len(args) > 4 {
			stableID = args[4]
		}
		res, err := libraryClient(l).Publish(ctx, stableID, b.Content)
		if err != nil {
			fail(l, "publish failed", err)
		}
		telemetry.Event("poem_published", map[string]any{"version": res.Version})
		fmt.Printf("Published: id=%d stable_id=%s version=%d\n", res.ID, res.StableID, res.Version)
		return

	case "library":
		c := libraryClient(l)
		if len(args) > 2 {
			id, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				fail(l, "bad id", err)
			}
			p, err := c.GetPoem(ctx, id)
			if err != nil {
				fail(l, "fetch failed", err)
			}
			fmt.Print(p.Source)
			return
		}
		list, err := c.ListPoems(ctx)
		if err != nil {
			fail(l, "list failed", err)
		}
		for _, p := range list {
			fmt.Printf("%d  %s — %s (%d verses, v%d)\n", p.ID, p.Title, p.Poet, p.VerseCount, p.Version)
		}
		fmt.Printf("%d poem(s)\n", len(list))
		return

	case "remote-search":
		if len(args) < 3 {
			fmt.Println("remote-search requires <text>")
			usage()
			os.Exit(2)
		}
		poet := ""
		if len(args) > 3 {
			poet = args[3]
		}
		hits, err := libraryClient(l).Search(ctx, args[2], poet, 20, 0)
		if err != nil {
			fail(l, "remote search failed", err)
		}
		for _, p := range hits {
			fmt.Printf("%d  %s — %s\n    %s\n", p.ID, p.Title, p.Poet, p.Snippet)
		}
		fmt.Printf("%d hit(s)\n", len(hits))
		return

	case "theme":
		if len(args) < 3 {
			fmt.Println("theme requires a subcommand")
			usage()
			os.Exit(2)
		}
		switch args[2] {
		case "list":
			root := "."
			if len(args) > 3 {
				root = args[3]
			}
			root, _ = filepath.Abs(root)
			names, err := themepack.ListThemes(root)
			if err != nil {
				fail(l, "theme list failed", err)
			}
			for _, n := range names {
				fmt.Println(n)
			}
			fmt.Printf("%d theme(s)\n", len(names))
		case "export":
			if len(args) < 5 {
				fmt.Println("theme export requires <dir> and <pack.zip>")
				os.Exit(2)
			}
			root, _ := filepath.Abs(args[3])
			if err := themepack.ExportThemes(root, args[4]); err != nil {
				fail(l, "theme export failed", err)
			}
			fmt.Println("Theme pack written to", args[4])
		case "install":
			if len(args) < 5 {
				fmt.Println("theme install requires <dir> and <pack.zip>")
				os.Exit(2)
			}
			root, _ := filepath.Abs(args[3])
			n, err := themepack.InstallPack(root, args[4])
			if err != nil {
				fail(l, "theme install failed", err)
			}
			fmt.Printf("Installed %d theme file(s)\n", n)
		default:
			fmt.Println("theme subcommand must be list, export or install")
			os.Exit(2)
		}
		return
	}

	usage()
}
