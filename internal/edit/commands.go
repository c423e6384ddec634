/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package edit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"godiwan/internal/domain"
)

// Command is a single mutation of a poem. Apply either mutates the poem and
// returns nil, or leaves it untouched and returns an error.
type Command interface {
	Name() string
	Apply(p *domain.Poem) error
}

// AddVerse appends an empty verse at the end of the poem.
type AddVerse struct{}

func (AddVerse) Name() string { return "add_verse" }

func (AddVerse) Apply(p *domain.Poem) error {
	p.Verses = append(p.Verses, domain.Verse{})
	return nil
}

// InsertVerse inserts an empty verse at Index, pushing annotations of later
// verses down by one.
type InsertVerse struct {
	Index int
}

func (InsertVerse) Name() string { return "insert_verse" }

func (c InsertVerse) Apply(p *domain.Poem) error {
	if c.Index < 0 || c.Index > len(p.Verses) {
		return fmt.Errorf("insert verse: index %d out of range [0,%d]", c.Index, len(p.Verses))
	}
	p.Verses = append(p.Verses, domain.Verse{})
	copy(p.Verses[c.Index+1:], p.Verses[c.Index:])
	p.Verses[c.Index] = domain.Verse{}
	shiftForInsert(p, c.Index)
	return nil
}

// RemoveVerse deletes the verse at Index together with its annotations.
type RemoveVerse struct {
	Index int
}

func (RemoveVerse) Name() string { return "remove_verse" }

func (c RemoveVerse) Apply(p *domain.Poem) error {
	if c.Index < 0 || c.Index >= len(p.Verses) {
		return fmt.Errorf("remove verse: index %d out of range [0,%d)", c.Index, len(p.Verses))
	}
	p.Verses = append(p.Verses[:c.Index], p.Verses[c.Index+1:]...)
	cascadeDelete(p, c.Index)
	return nil
}

// SwapVerses exchanges the verses at I and J; their annotations travel with
// them unchanged.
type SwapVerses struct {
	I, J int
}

func (SwapVerses) Name() string { return "swap_verses" }

func (c SwapVerses) Apply(p *domain.Poem) error {
	if c.I < 0 || c.I >= len(p.Verses) || c.J < 0 || c.J >= len(p.Verses) {
		return fmt.Errorf("swap verses: indices %d,%d out of range [0,%d)", c.I, c.J, len(p.Verses))
	}
	if c.I == c.J {
		return nil
	}
	p.Verses[c.I], p.Verses[c.J] = p.Verses[c.J], p.Verses[c.I]
	repointSwap(p, c.I, c.J)
	return nil
}

// EditVerse replaces both hemistichs of the verse at Index. Annotations of
// that verse whose cached text no longer matches their offsets are dropped.
type EditVerse struct {
	Index      int
	Sadr, Ajaz string
}

func (EditVerse) Name() string { return "edit_verse" }

func (c EditVerse) Apply(p *domain.Poem) error {
	if c.Index < 0 || c.Index >= len(p.Verses) {
		return fmt.Errorf("edit verse: index %d out of range [0,%d)", c.Index, len(p.Verses))
	}
	p.Verses[c.Index] = domain.Verse{Sadr: c.Sadr, Ajaz: c.Ajaz}
	reconcileAfterEdit(p, c.Index)
	return nil
}

// Annotate attaches a note to the rune span [StartPos,EndPos) of one
// hemistich, evicting any existing annotation it overlaps with.
type Annotate struct {
	VerseIndex int
	Part       domain.VersePart
	StartPos   int
	EndPos     int
	Note       string
}

func (Annotate) Name() string { return "annotate" }

func (c Annotate) Apply(p *domain.Poem) error {
	if err := p.ValidateSpan(c.VerseIndex, c.Part, c.StartPos, c.EndPos); err != nil {
		return err
	}
	evictOverlapping(p, c.VerseIndex, c.Part, c.StartPos, c.EndPos)
	text := domain.RuneSlice(p.PartText(c.VerseIndex, c.Part), c.StartPos, c.EndPos)
	p.Annotations = append(p.Annotations, domain.Annotation{
		ID:         uuid.NewString(),
		Text:       text,
		Note:       c.Note,
		VerseIndex: c.VerseIndex,
		Part:       c.Part,
		StartPos:   c.StartPos,
		EndPos:     c.EndPos,
	})
	return nil
}

// UpdateAnnotation changes the note of an existing annotation in place. The
// span and identity stay as they are.
type UpdateAnnotation struct {
	ID   string
	Note string
}

func (UpdateAnnotation) Name() string { return "update_annotation" }

func (c UpdateAnnotation) Apply(p *domain.Poem) error {
	a := p.AnnotationByID(c.ID)
	if a == nil {
		return fmt.Errorf("update annotation: no annotation %q", c.ID)
	}
	a.Note = c.Note
	return nil
}

// RemoveAnnotation deletes the annotation with the given id.
type RemoveAnnotation struct {
	ID string
}

func (RemoveAnnotation) Name() string { return "remove_annotation" }

func (c RemoveAnnotation) Apply(p *domain.Poem) error {
	for i, a := range p.Annotations {
		if a.ID == c.ID {
			p.Annotations = append(p.Annotations[:i], p.Annotations[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove annotation: no annotation %q", c.ID)
}

// SetTitle sets the poem title.
type SetTitle struct {
	Value string
}

func (SetTitle) Name() string { return "set_title" }

func (c SetTitle) Apply(p *domain.Poem) error {
	p.Title = c.Value
	return nil
}

// SetPoet sets the poet name.
type SetPoet struct {
	Value string
}

func (SetPoet) Name() string { return "set_poet" }

func (c SetPoet) Apply(p *domain.Poem) error {
	p.Poet = c.Value
	return nil
}

// SetLayout sets the rendering layout hint.
type SetLayout struct {
	Value domain.Layout
}

func (SetLayout) Name() string { return "set_layout" }

func (c SetLayout) Apply(p *domain.Poem) error {
	if !c.Value.Valid() {
		return fmt.Errorf("set layout: unknown layout %q", c.Value)
	}
	p.Layout = c.Value
	return nil
}

// SetSize sets the rendering size hint.
type SetSize struct {
	Value domain.Size
}

func (SetSize) Name() string { return "set_size" }

func (c SetSize) Apply(p *domain.Poem) error {
	if !c.Value.Valid() {
		return fmt.Errorf("set size: unknown size %q", c.Value)
	}
	p.Size = c.Value
	return nil
}

// SetNumbered toggles verse numbering.
type SetNumbered struct {
	Value bool
}

func (SetNumbered) Name() string { return "set_numbered" }

func (c SetNumbered) Apply(p *domain.Poem) error {
	p.Numbered = c.Value
	return nil
}

// AddTag adds a tag to the poem. Adding a tag that is already present is a
// no-op, not an error; blank tags and tags containing a comma are rejected.
type AddTag struct {
	Tag string
}

func (AddTag) Name() string { return "add_tag" }

func (c AddTag) Apply(p *domain.Poem) error {
	if strings.TrimSpace(c.Tag) == "" {
		return fmt.Errorf("add tag: blank tag")
	}
	if strings.ContainsAny(c.Tag, ",،") {
		return fmt.Errorf("add tag: tag %q contains a comma", c.Tag)
	}
	p.AddTag(c.Tag)
	return nil
}

// RemoveTag removes a tag; removing an absent tag is a no-op.
type RemoveTag struct {
	Tag string
}

func (RemoveTag) Name() string { return "remove_tag" }

func (c RemoveTag) Apply(p *domain.Poem) error {
	p.RemoveTag(c.Tag)
	return nil
}
