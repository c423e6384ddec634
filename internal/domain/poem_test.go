/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "testing"

func TestNewPoemDefaults(t *testing.T) {
	p := NewPoem()
	if len(p.Verses) != 1 || p.Verses[0].Sadr != "" || p.Verses[0].Ajaz != "" {
		t.Fatalf("expected one empty verse, got %+v", p.Verses)
	}
	if p.Layout != LayoutSideBySide || p.Size != SizeMedium || p.Numbered {
		t.Fatalf("unexpected defaults: layout=%s size=%s numbered=%v", p.Layout, p.Size, p.Numbered)
	}
}

func TestAddTagDedupAndRejection(t *testing.T) {
	p := NewPoem()
	if !p.AddTag("حب") {
		t.Fatalf("first add should succeed")
	}
	if p.AddTag("حب") {
		t.Fatalf("duplicate tag should be suppressed")
	}
	if p.AddTag("  ") || p.AddTag("") {
		t.Fatalf("blank tags must be rejected")
	}
	// the serialized tag list is comma-delimited; a tag carrying either
	// comma would re-parse as several tags
	if p.AddTag("غزل,مدح") || p.AddTag("غزل،مدح") {
		t.Fatalf("comma-containing tags must be rejected")
	}
	if len(p.Tags) != 1 || p.Tags[0] != "حب" {
		t.Fatalf("unexpected tags: %+v", p.Tags)
	}
	// case-sensitive: a differently-cased Latin tag is a distinct tag
	p.AddTag("Ghazal")
	p.AddTag("ghazal")
	if len(p.Tags) != 3 {
		t.Fatalf("case-sensitive dedup expected 3 tags, got %+v", p.Tags)
	}
}

func TestRemoveTagKeepsOrder(t *testing.T) {
	p := NewPoem()
	p.AddTag("a")
	p.AddTag("b")
	p.AddTag("c")
	if !p.RemoveTag("b") {
		t.Fatalf("expected removal of b")
	}
	if len(p.Tags) != 2 || p.Tags[0] != "a" || p.Tags[1] != "c" {
		t.Fatalf("unexpected tags after removal: %+v", p.Tags)
	}
	if p.RemoveTag("missing") {
		t.Fatalf("removing absent tag should report false")
	}
}

func TestValidateSpan(t *testing.T) {
	p := NewPoem()
	p.Verses[0] = Verse{Sadr: "قفا نبك", Ajaz: "بسقط اللوى"}
	if err := p.ValidateSpan(0, PartSadr, 0, 3); err != nil {
		t.Fatalf("valid span rejected: %v", err)
	}
	if err := p.ValidateSpan(0, PartSadr, 3, 3); err == nil {
		t.Fatalf("empty span must be rejected")
	}
	if err := p.ValidateSpan(0, PartSadr, 5, 2); err == nil {
		t.Fatalf("inverted span must be rejected")
	}
	// "قفا نبك" has 7 runes; 8 is out of bounds
	if err := p.ValidateSpan(0, PartSadr, 0, 8); err == nil {
		t.Fatalf("span beyond hemistich length must be rejected")
	}
	if err := p.ValidateSpan(3, PartSadr, 0, 1); err == nil {
		t.Fatalf("out-of-range verse index must be rejected")
	}
	if err := p.ValidateSpan(0, VersePart("middle"), 0, 1); err == nil {
		t.Fatalf("unknown part must be rejected")
	}
}

func TestRuneSliceClamps(t *testing.T) {
	s := "قمر جميل"
	if got := RuneSlice(s, 0, 3); got != "قمر" {
		t.Fatalf("unexpected slice: %q", got)
	}
	if got := RuneSlice(s, 4, 100); got != "جميل" {
		t.Fatalf("expected clamped tail, got %q", got)
	}
	if got := RuneSlice(s, 5, 2); got != "" {
		t.Fatalf("inverted bounds should yield empty, got %q", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := NewPoem()
	p.Verses[0] = Verse{Sadr: "أ", Ajaz: "ب"}
	p.AddTag("t")
	p.Annotations = append(p.Annotations, Annotation{ID: "x", Text: "أ", VerseIndex: 0, Part: PartSadr, StartPos: 0, EndPos: 1})
	p.LegacyAnnotations = map[string]string{"أ": "alif"}
	q := p.Clone()
	q.Verses[0].Sadr = "changed"
	q.Tags[0] = "changed"
	q.Annotations[0].Note = "changed"
	q.LegacyAnnotations["أ"] = "changed"
	if p.Verses[0].Sadr != "أ" || p.Tags[0] != "t" || p.Annotations[0].Note != "" || p.LegacyAnnotations["أ"] != "alif" {
		t.Fatalf("clone shares state with original: %+v", p)
	}
}

func TestEqualIgnoresAnnotationOrder(t *testing.T) {
	a1 := Annotation{ID: "1", Text: "x", VerseIndex: 0, Part: PartSadr, StartPos: 0, EndPos: 1}
	a2 := Annotation{ID: "2", Text: "y", VerseIndex: 0, Part: PartAjaz, StartPos: 0, EndPos: 1}
	p := &Poem{Verses: []Verse{{Sadr: "xx", Ajaz: "yy"}}, Layout: LayoutSideBySide, Size: SizeMedium, Annotations: []Annotation{a1, a2}}
	q := p.Clone()
	q.Annotations[0], q.Annotations[1] = q.Annotations[1], q.Annotations[0]
	if !p.Equal(q) {
		t.Fatalf("annotation order should not affect equality")
	}
	q.Annotations[0].Note = "different"
	if p.Equal(q) {
		t.Fatalf("differing annotation must break equality")
	}
}
