/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package edit provides the command-based mutation layer for poems. Every
// user action is a discrete Command applied to the poem through a Session;
// the functions in this file keep annotation verse references and span
// invariants correct across those mutations.
package edit

import (
	"log/slog"

	"godiwan/internal/domain"
	applog "godiwan/internal/log"
)

// SpansOverlap reports whether [a,b) and [c,d) intersect. Touching ranges
// do not overlap.
func SpansOverlap(a, b, c, d int) bool { return a < d && c < b }

// shiftForInsert adjusts verse references after an empty verse was inserted
// at index k: every annotation at or past k moves down by one.
func shiftForInsert(p *domain.Poem, k int) {
	for i := range p.Annotations {
		if p.Annotations[i].VerseIndex >= k {
			p.Annotations[i].VerseIndex++
		}
	}
}

// cascadeDelete removes every annotation referencing verse k and shifts
// references past k back by one. Annotations cannot survive their verse.
func cascadeDelete(p *domain.Poem, k int) (removed int) {
	kept := p.Annotations[:0]
	for _, a := range p.Annotations {
		switch {
		case a.VerseIndex == k:
			removed++
		case a.VerseIndex > k:
			a.VerseIndex--
			kept = append(kept, a)
		default:
			kept = append(kept, a)
		}
	}
	p.Annotations = kept
	return removed
}

// repointSwap exchanges the verse references i and j after the verses
// themselves were swapped. No other annotation changes.
func repointSwap(p *domain.Poem, i, j int) {
	for k := range p.Annotations {
		switch p.Annotations[k].VerseIndex {
		case i:
			p.Annotations[k].VerseIndex = j
		case j:
			p.Annotations[k].VerseIndex = i
		}
	}
}

// evictOverlapping removes annotations in (verseIndex, part) whose span
// intersects [start,end). Replacement is a hard evict, never a merge.
func evictOverlapping(p *domain.Poem, verseIndex int, part domain.VersePart, start, end int) (evicted int) {
	kept := p.Annotations[:0]
	for _, a := range p.Annotations {
		if a.VerseIndex == verseIndex && a.Part == part && SpansOverlap(a.StartPos, a.EndPos, start, end) {
			evicted++
			continue
		}
		kept = append(kept, a)
	}
	p.Annotations = kept
	return evicted
}

// reconcileAfterEdit drops annotations of verse k whose cached text no
// longer matches the substring at their offsets, which happens when the
// hemistich was edited underneath them. Offsets are never remapped; a stale
// annotation is removed rather than silently mispointed.
func reconcileAfterEdit(p *domain.Poem, k int) (dropped int) {
	l := applog.WithComponent("edit")
	kept := p.Annotations[:0]
	for _, a := range p.Annotations {
		if a.VerseIndex == k && !spanStillValid(p, a) {
			l.Warn("dropping stale annotation after verse edit",
				slog.String("id", a.ID), slog.Int("verse", k), slog.String("part", string(a.Part)))
			dropped++
			continue
		}
		kept = append(kept, a)
	}
	p.Annotations = kept
	return dropped
}

func spanStillValid(p *domain.Poem, a domain.Annotation) bool {
	text := p.PartText(a.VerseIndex, a.Part)
	if a.EndPos > domain.RuneLen(text) {
		return false
	}
	return domain.RuneSlice(text, a.StartPos, a.EndPos) == a.Text
}
