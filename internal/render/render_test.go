/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"strings"
	"testing"

	"godiwan/internal/domain"
)

func annotatedPoem() *domain.Poem {
	p := domain.NewPoem()
	p.Title = "قصيدة"
	p.Poet = "شاعر"
	p.Verses[0] = domain.Verse{Sadr: "طلع قمر الليل", Ajaz: "على الوادي"}
	p.Annotations = []domain.Annotation{
		{ID: "a1", Text: "قمر", Note: "moon", VerseIndex: 0, Part: domain.PartSadr, StartPos: 4, EndPos: 7},
	}
	return p
}

func joined(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestPartSegmentsReproducesText(t *testing.T) {
	p := annotatedPoem()
	segs := PartSegments(p, 0, domain.PartSadr)
	if got := joined(segs); got != p.Verses[0].Sadr {
		t.Fatalf("segments do not reproduce hemistich: %q", got)
	}
	if len(segs) != 3 {
		t.Fatalf("expected plain/annotated/plain, got %d segments", len(segs))
	}
	if segs[0].Annotation != nil || segs[2].Annotation != nil {
		t.Fatalf("outer segments must be plain")
	}
	if segs[1].Annotation == nil || segs[1].Text != "قمر" {
		t.Fatalf("middle segment must carry the annotation: %+v", segs[1])
	}
}

func TestPartSegmentsNoAnnotations(t *testing.T) {
	p := annotatedPoem()
	segs := PartSegments(p, 0, domain.PartAjaz)
	if len(segs) != 1 || segs[0].Annotation != nil || segs[0].Text != "على الوادي" {
		t.Fatalf("unannotated part must be one plain segment: %+v", segs)
	}
}

func TestPartSegmentsSkipsOutOfRangeSpans(t *testing.T) {
	p := annotatedPoem()
	p.Annotations = append(p.Annotations, domain.Annotation{
		ID: "bad", Text: "x", VerseIndex: 0, Part: domain.PartSadr, StartPos: 5, EndPos: 99,
	})
	segs := PartSegments(p, 0, domain.PartSadr)
	if got := joined(segs); got != p.Verses[0].Sadr {
		t.Fatalf("broken span must not corrupt output: %q", got)
	}
	for _, s := range segs {
		if s.Annotation != nil && s.Annotation.ID == "bad" {
			t.Fatalf("out-of-range span must be skipped")
		}
	}
}

func TestPartSegmentsSpanAtEdges(t *testing.T) {
	p := domain.NewPoem()
	p.Verses[0] = domain.Verse{Sadr: "قفا نبك", Ajaz: "x"}
	p.Annotations = []domain.Annotation{
		{ID: "all", Text: "قفا نبك", Note: "n", VerseIndex: 0, Part: domain.PartSadr, StartPos: 0, EndPos: 7},
	}
	segs := PartSegments(p, 0, domain.PartSadr)
	if len(segs) != 1 || segs[0].Annotation == nil {
		t.Fatalf("full-width span must yield a single annotated segment: %+v", segs)
	}
}

func TestFragmentMarkup(t *testing.T) {
	p := annotatedPoem()
	p.Numbered = true
	p.Layout = domain.LayoutStacked
	p.Size = domain.SizeLarge
	out := Fragment(p)
	for _, want := range []string{
		`class="diwan layout-stacked size-large" dir="rtl"`,
		`<div class="diwan-title">قصيدة</div>`,
		`<div class="diwan-poet">شاعر</div>`,
		`<span class="diwan-ordinal">1</span>`,
		`<span class="diwan-annot" title="moon">قمر</span>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("fragment missing %q:\n%s", want, out)
		}
	}
}

func TestFragmentEscapesHTML(t *testing.T) {
	p := domain.NewPoem()
	p.Title = `<script>alert("x")</script>`
	p.Verses[0] = domain.Verse{Sadr: "a < b", Ajaz: "c & d"}
	out := Fragment(p)
	if strings.Contains(out, "<script>") {
		t.Fatalf("title not escaped:\n%s", out)
	}
	if !strings.Contains(out, "a &lt; b") || !strings.Contains(out, "c &amp; d") {
		t.Fatalf("verse text not escaped:\n%s", out)
	}
}

func TestDocumentWrapsFragment(t *testing.T) {
	p := annotatedPoem()
	out := Document(p, "")
	if !strings.Contains(out, "<!DOCTYPE html>") || !strings.Contains(out, DefaultCSS) {
		t.Fatalf("document missing scaffold")
	}
	if !strings.Contains(out, `<title>قصيدة</title>`) {
		t.Fatalf("document missing title")
	}
	custom := ".diwan { color: red; }"
	out = Document(p, custom)
	if !strings.Contains(out, custom) || strings.Contains(out, DefaultCSS) {
		t.Fatalf("custom theme not applied")
	}
}

func TestPoemViewOrdinals(t *testing.T) {
	p := domain.NewPoem()
	p.Verses = []domain.Verse{{Sadr: "a", Ajaz: "b"}, {Sadr: "c", Ajaz: "d"}}
	views := PoemView(p)
	if len(views) != 2 || views[0].Ordinal != 1 || views[1].Ordinal != 2 {
		t.Fatalf("ordinals must be 1-based: %+v", views)
	}
}
