/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for a diwan: a poem of two-hemistich
// Arabic verses with positional gloss annotations, embeddable as a fenced
// block in a host text document.

import (
	"fmt"
	"strings"
)

// VersePart identifies one hemistich of a verse.
type VersePart string

const (
	PartSadr VersePart = "sadr" // first hemistich
	PartAjaz VersePart = "ajaz" // second hemistich
)

// Valid reports whether p is one of the two known hemistich names.
func (p VersePart) Valid() bool { return p == PartSadr || p == PartAjaz }

// Layout is a presentation hint for how the two hemistichs are arranged.
type Layout string

const (
	LayoutSideBySide Layout = "side-by-side"
	LayoutStacked    Layout = "stacked"
)

func (l Layout) Valid() bool { return l == LayoutSideBySide || l == LayoutStacked }

// ParseLayout maps a textual layout value to a Layout, falling back to the
// default on anything unrecognized.
func ParseLayout(s string) Layout {
	if Layout(s) == LayoutStacked {
		return LayoutStacked
	}
	return LayoutSideBySide
}

// Size is a presentation hint for the rendered type size.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

func (s Size) Valid() bool { return s == SizeSmall || s == SizeMedium || s == SizeLarge }

// ParseSize maps a textual size value to a Size, falling back to the default
// on anything unrecognized.
func ParseSize(s string) Size {
	switch Size(s) {
	case SizeSmall:
		return SizeSmall
	case SizeLarge:
		return SizeLarge
	default:
		return SizeMedium
	}
}

// Verse is one full line of poetry (bayt): sadr and ajaz hemistichs.
// A verse has no identity beyond its position in the poem.
type Verse struct {
	Sadr string `json:"sadr"`
	Ajaz string `json:"ajaz"`
}

// Part returns the named hemistich text.
func (v Verse) Part(p VersePart) string {
	if p == PartAjaz {
		return v.Ajaz
	}
	return v.Sadr
}

// Annotation glosses a character span inside exactly one hemistich.
// Text caches the annotated substring as it was at creation time; it is not
// re-validated automatically when the hemistich is edited later.
// StartPos/EndPos are half-open rune offsets into the hemistich.
type Annotation struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Note       string    `json:"annotation"`
	VerseIndex int       `json:"verseIndex"`
	Part       VersePart `json:"part"`
	StartPos   int       `json:"startPos"`
	EndPos     int       `json:"endPos"`
}

// Poem is the aggregate root for a diwan block.
type Poem struct {
	Title    string       `json:"title,omitempty"`
	Poet     string       `json:"poet,omitempty"`
	Tags     []string     `json:"tags,omitempty"`
	Verses   []Verse      `json:"verses"`
	Layout   Layout       `json:"layout"`
	Size     Size         `json:"size"`
	Numbered bool         `json:"numbered"`
	// Annotations is keyed by position in the slice only for storage; lookup
	// is by ID. Order carries no meaning.
	Annotations []Annotation `json:"annotations,omitempty"`
	// LegacyAnnotations is the old whole-word gloss map. It is accepted on
	// input for migration and must never be produced by serialization.
	LegacyAnnotations map[string]string `json:"legacyAnnotations,omitempty"`
}

// NewPoem returns a fresh poem with one empty verse and default hints.
func NewPoem() *Poem {
	return &Poem{
		Verses:   []Verse{{}},
		Layout:   LayoutSideBySide,
		Size:     SizeMedium,
		Numbered: false,
	}
}

// AddTag appends a tag unless it is already present (case-sensitive exact
// match). Empty or whitespace-only tags are rejected, as are tags containing
// a comma (ASCII or Arabic): the serialized tag list is comma-delimited, so
// such a tag would re-parse as several. Returns true when the tag was added.
func (p *Poem) AddTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.ContainsAny(tag, ",،") {
		return false
	}
	for _, t := range p.Tags {
		if t == tag {
			return false
		}
	}
	p.Tags = append(p.Tags, tag)
	return true
}

// RemoveTag deletes a tag by exact match, preserving the order of the rest.
func (p *Poem) RemoveTag(tag string) bool {
	for i, t := range p.Tags {
		if t == tag {
			p.Tags = append(p.Tags[:i], p.Tags[i+1:]...)
			return true
		}
	}
	return false
}

// AnnotationByID returns a pointer into the annotation slice, or nil.
func (p *Poem) AnnotationByID(id string) *Annotation {
	for i := range p.Annotations {
		if p.Annotations[i].ID == id {
			return &p.Annotations[i]
		}
	}
	return nil
}

// PartText returns the hemistich text the annotation points at, or "" when
// the verse index is out of range.
func (p *Poem) PartText(verseIndex int, part VersePart) string {
	if verseIndex < 0 || verseIndex >= len(p.Verses) {
		return ""
	}
	return p.Verses[verseIndex].Part(part)
}

// ValidateSpan checks that [start,end) is a well-formed rune span inside the
// given hemistich of the given verse.
func (p *Poem) ValidateSpan(verseIndex int, part VersePart, start, end int) error {
	if verseIndex < 0 || verseIndex >= len(p.Verses) {
		return fmt.Errorf("verse index %d out of range (have %d verses)", verseIndex, len(p.Verses))
	}
	if !part.Valid() {
		return fmt.Errorf("unknown verse part %q", part)
	}
	if start < 0 || start >= end {
		return fmt.Errorf("invalid span [%d,%d): start must be >= 0 and < end", start, end)
	}
	if n := RuneLen(p.Verses[verseIndex].Part(part)); end > n {
		return fmt.Errorf("span end %d beyond hemistich length %d", end, n)
	}
	return nil
}

// Clone returns a deep copy of the poem.
func (p *Poem) Clone() *Poem {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.Verses = append([]Verse(nil), p.Verses...)
	cp.Annotations = append([]Annotation(nil), p.Annotations...)
	if p.LegacyAnnotations != nil {
		cp.LegacyAnnotations = make(map[string]string, len(p.LegacyAnnotations))
		for k, v := range p.LegacyAnnotations {
			cp.LegacyAnnotations[k] = v
		}
	}
	return &cp
}

// Equal reports structural equality, ignoring annotation order.
func (p *Poem) Equal(q *Poem) bool {
	if p == nil || q == nil {
		return p == q
	}
	if p.Title != q.Title || p.Poet != q.Poet ||
		p.Layout != q.Layout || p.Size != q.Size || p.Numbered != q.Numbered {
		return false
	}
	if len(p.Tags) != len(q.Tags) || len(p.Verses) != len(q.Verses) ||
		len(p.Annotations) != len(q.Annotations) ||
		len(p.LegacyAnnotations) != len(q.LegacyAnnotations) {
		return false
	}
	for i := range p.Tags {
		if p.Tags[i] != q.Tags[i] {
			return false
		}
	}
	for i := range p.Verses {
		if p.Verses[i] != q.Verses[i] {
			return false
		}
	}
	for _, a := range p.Annotations {
		b := q.AnnotationByID(a.ID)
		if b == nil || *b != a {
			return false
		}
	}
	for k, v := range p.LegacyAnnotations {
		if q.LegacyAnnotations[k] != v {
			return false
		}
	}
	return true
}

// RuneLen counts characters, not bytes. Offsets throughout the model are
// rune offsets; hemistich text is Arabic and byte offsets would be useless
// to callers.
func RuneLen(s string) int { return len([]rune(s)) }

// RuneSlice returns s[start:end] in rune offsets. Out-of-range bounds are
// clamped rather than panicking.
func RuneSlice(s string, start, end int) string {
	r := []rune(s)
	if start < 0 {
		start = 0
	}
	if end > len(r) {
		end = len(r)
	}
	if start >= end {
		return ""
	}
	return string(r[start:end])
}
