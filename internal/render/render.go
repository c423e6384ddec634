/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns a poem into display structures. Segments is the
// neutral view-model consumed by all renderers; the HTML renderer in
// html.go is the main consumer, the PDF exporter builds on the same
// segmentation.
package render

import (
	"sort"

	"godiwan/internal/domain"
)

// Segment is a run of hemistich text that is either plain or covered by
// exactly one annotation. Concatenating the Text of all segments of a part
// reproduces the hemistich verbatim.
type Segment struct {
	Text       string
	Annotation *domain.Annotation // nil for plain runs
}

// PartSegments splits one hemistich into plain and annotated runs, in
// reading order. Annotations with out-of-range spans are skipped rather
// than clamped; the codec and edit layers keep those from existing, but a
// hand-edited block can still carry them.
func PartSegments(p *domain.Poem, verseIndex int, part domain.VersePart) []Segment {
	text := p.PartText(verseIndex, part)
	n := domain.RuneLen(text)

	var spans []domain.Annotation
	for _, a := range p.Annotations {
		if a.VerseIndex != verseIndex || a.Part != part {
			continue
		}
		if a.StartPos < 0 || a.EndPos > n || a.StartPos >= a.EndPos {
			continue
		}
		spans = append(spans, a)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartPos < spans[j].StartPos })

	var segs []Segment
	cursor := 0
	for i := range spans {
		a := spans[i]
		if a.StartPos < cursor {
			// overlapping spans should have been evicted upstream; keep
			// the earlier one and skip the intruder
			continue
		}
		if a.StartPos > cursor {
			segs = append(segs, Segment{Text: domain.RuneSlice(text, cursor, a.StartPos)})
		}
		segs = append(segs, Segment{Text: domain.RuneSlice(text, a.StartPos, a.EndPos), Annotation: &spans[i]})
		cursor = a.EndPos
	}
	if cursor < n {
		segs = append(segs, Segment{Text: domain.RuneSlice(text, cursor, n)})
	}
	return segs
}

// VerseView is one verse ready for rendering: both hemistichs segmented,
// plus the 1-based ordinal used when numbering is on.
type VerseView struct {
	Ordinal int
	Sadr    []Segment
	Ajaz    []Segment
}

// PoemView flattens a poem into renderer-ready rows.
func PoemView(p *domain.Poem) []VerseView {
	views := make([]VerseView, len(p.Verses))
	for i := range p.Verses {
		views[i] = VerseView{
			Ordinal: i + 1,
			Sadr:    PartSegments(p, i, domain.PartSadr),
			Ajaz:    PartSegments(p, i, domain.PartAjaz),
		}
	}
	return views
}
