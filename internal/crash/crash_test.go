/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"godiwan/internal/storage"
)

func TestRecoverWritesReportAndAutosave(t *testing.T) {
	dir := t.TempDir()
	doc := &storage.DocumentHandle{
		Path: filepath.Join(dir, "diwan.md"),
		Text: "unsaved edits\n",
	}

	exited := 0
	oldExit := exitFn
	exitFn = func(code int) { exited = code }
	t.Cleanup(func() { exitFn = oldExit })

	func() {
		defer Recover(doc)
		panic("boom")
	}()

	if exited != 2 {
		t.Fatalf("expected exit code 2, got %d", exited)
	}

	bdir := filepath.Join(dir, storage.WorkspaceDirName, storage.BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	var report, autosave string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, "crash-") && strings.HasSuffix(name, ".log") {
			report = filepath.Join(bdir, name)
		}
		if strings.HasPrefix(name, "autosave-") {
			autosave = filepath.Join(bdir, name)
		}
	}
	if report == "" {
		t.Fatalf("no crash report written, entries: %v", ents)
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{"Panic: boom", "Stack:", "Document:"} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("report missing %q:\n%s", want, b)
		}
	}
	if autosave == "" {
		t.Fatalf("no autosave written, entries: %v", ents)
	}
	ab, err := os.ReadFile(autosave)
	if err != nil {
		t.Fatalf("read autosave: %v", err)
	}
	if string(ab) != "unsaved edits\n" {
		t.Fatalf("autosave holds wrong content: %q", ab)
	}
}

func TestRecoverNoPanicIsNoop(t *testing.T) {
	oldExit := exitFn
	called := false
	exitFn = func(int) { called = true }
	t.Cleanup(func() { exitFn = oldExit })
	func() {
		defer Recover(nil)
	}()
	if called {
		t.Fatalf("Recover must do nothing without a panic")
	}
}

func TestRecoverNilDocumentStillReports(t *testing.T) {
	oldExit := exitFn
	exited := 0
	exitFn = func(code int) { exited = code }
	t.Cleanup(func() { exitFn = oldExit })
	func() {
		defer Recover(nil)
		panic("no document open")
	}()
	if exited != 2 {
		t.Fatalf("expected exit code 2, got %d", exited)
	}
}
