/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package codec converts between the diwan block text format and the poem
// model. The format is line oriented:
//
//	<metadata lines: key: value>
//	---
//	<verse lines: sadr | ajaz>
//
// Parse is deliberately permissive: malformed fields fall back to their
// defaults and malformed verse lines are dropped, so a hand-edited block is
// recovered as far as possible instead of being rejected. Serialize is
// deterministic and field-order fixed so blocks diff cleanly in the host
// document.
package codec

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"godiwan/internal/domain"
	applog "godiwan/internal/log"
)

// Separator terminates the metadata header. Only the first occurrence
// matters; later separator lines are ordinary (dropped) verse lines.
const Separator = "---"

// Metadata keys recognized in the header. Anything else is ignored.
const (
	keyTitle       = "title:"
	keyPoet        = "poet:"
	keyTags        = "tags:"
	keyLayout      = "layout:"
	keySize        = "size:"
	keyNumbered    = "numbered:"
	keyAnnotations = "annotations:"
	keyLegacy      = "legacyAnnotations:"
)

// tagDelimiters accepted in the plain-list tag grammar: ASCII comma and the
// Arabic comma. Serialization always emits ASCII comma + space.
func splitTagList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '،' })
}

// Parse reads the body of a diwan block into a Poem. It never fails:
// unparseable fields reset to defaults, unparseable verse lines are skipped,
// and the conditions are logged for diagnostics only.
func Parse(source string) *domain.Poem {
	l := applog.WithComponent("codec")
	p := &domain.Poem{
		Layout: domain.LayoutSideBySide,
		Size:   domain.SizeMedium,
	}

	inHeader := true
	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if inHeader {
			if line == Separator {
				inHeader = false
				continue
			}
			parseHeaderLine(l, p, line, lineNo)
			continue
		}
		sadr, ajaz, ok := splitVerseLine(line)
		if !ok {
			l.Debug("dropping malformed verse line", slog.Int("line", lineNo), slog.String("text", line))
			continue
		}
		p.Verses = append(p.Verses, domain.Verse{Sadr: sadr, Ajaz: ajaz})
	}
	if err := scanner.Err(); err != nil {
		// Oversized or unreadable input: keep whatever was recovered.
		l.Warn("block scan aborted", slog.Int("line", lineNo), slog.Any("err", err))
	}

	if len(p.LegacyAnnotations) > 0 && len(p.Annotations) == 0 {
		migrateLegacy(l, p)
	}
	p.LegacyAnnotations = nil
	return p
}

func parseHeaderLine(l *slog.Logger, p *domain.Poem, line string, lineNo int) {
	switch {
	case strings.HasPrefix(line, keyLegacy):
		raw := strings.TrimSpace(line[len(keyLegacy):])
		m := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			l.Warn("malformed legacy annotations, ignoring", slog.Int("line", lineNo), slog.Any("err", err))
			return
		}
		p.LegacyAnnotations = m
	case strings.HasPrefix(line, keyAnnotations):
		raw := strings.TrimSpace(line[len(keyAnnotations):])
		var anns []domain.Annotation
		if err := json.Unmarshal([]byte(raw), &anns); err != nil {
			l.Warn("malformed annotations, resetting to empty", slog.Int("line", lineNo), slog.Any("err", err))
			p.Annotations = nil
			return
		}
		p.Annotations = anns
	case strings.HasPrefix(line, keyTitle):
		p.Title = strings.TrimSpace(line[len(keyTitle):])
	case strings.HasPrefix(line, keyPoet):
		p.Poet = strings.TrimSpace(line[len(keyPoet):])
	case strings.HasPrefix(line, keyTags):
		parseTags(l, p, strings.TrimSpace(line[len(keyTags):]), lineNo)
	case strings.HasPrefix(line, keyLayout):
		p.Layout = domain.ParseLayout(strings.TrimSpace(line[len(keyLayout):]))
	case strings.HasPrefix(line, keySize):
		p.Size = domain.ParseSize(strings.TrimSpace(line[len(keySize):]))
	case strings.HasPrefix(line, keyNumbered):
		p.Numbered = strings.TrimSpace(line[len(keyNumbered):]) == "true"
	default:
		// Unrecognized key: ignored, per the tolerance contract.
	}
}

// parseTags accepts either a JSON string array or a comma/Arabic-comma
// separated plain list. A malformed JSON array falls through to the plain
// grammar only when it does not look like JSON at all; a broken JSON array
// resets the field.
func parseTags(l *slog.Logger, p *domain.Poem, raw string, lineNo int) {
	if raw == "" {
		return
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			l.Warn("malformed tags array, resetting to empty", slog.Int("line", lineNo), slog.Any("err", err))
			p.Tags = nil
			return
		}
		for _, t := range tags {
			p.AddTag(t)
		}
		return
	}
	for _, t := range splitTagList(raw) {
		p.AddTag(t)
	}
}

// splitVerseLine splits a verse line on its pipe delimiter. Exactly one pipe
// is required; lines with none or several are rejected.
func splitVerseLine(line string) (sadr, ajaz string, ok bool) {
	parts := strings.Split(line, "|")
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// migrateLegacy converts the old word→gloss map into positional annotations
// by locating the first occurrence of each word, scanning verses in order
// and sadr before ajaz. Words that occur nowhere are dropped.
func migrateLegacy(l *slog.Logger, p *domain.Poem) {
	migrated := 0
	for word, gloss := range p.LegacyAnnotations {
		if word == "" {
			continue
		}
		idx, part, start := findFirst(p, word)
		if idx < 0 {
			l.Debug("legacy annotation word not found", slog.String("word", word))
			continue
		}
		p.Annotations = append(p.Annotations, domain.Annotation{
			ID:         uuid.NewString(),
			Text:       word,
			Note:       gloss,
			VerseIndex: idx,
			Part:       part,
			StartPos:   start,
			EndPos:     start + domain.RuneLen(word),
		})
		migrated++
	}
	l.Info("migrated legacy annotations", slog.Int("count", migrated), slog.Int("dropped", len(p.LegacyAnnotations)-migrated))
}

func findFirst(p *domain.Poem, word string) (verseIndex int, part domain.VersePart, start int) {
	for i, v := range p.Verses {
		if b := strings.Index(v.Sadr, word); b >= 0 {
			return i, domain.PartSadr, domain.RuneLen(v.Sadr[:b])
		}
		if b := strings.Index(v.Ajaz, word); b >= 0 {
			return i, domain.PartAjaz, domain.RuneLen(v.Ajaz[:b])
		}
	}
	return -1, "", 0
}

// Serialize writes the poem back to block text. Field order is fixed:
// title, poet, tags, layout, size, numbered, annotations, separator, verses.
// Optional fields are omitted when empty; presentation hints are always
// written so a block is self-describing.
func Serialize(p *domain.Poem) string {
	var b strings.Builder
	if p.Title != "" {
		b.WriteString(keyTitle + " " + p.Title + "\n")
	}
	if p.Poet != "" {
		b.WriteString(keyPoet + " " + p.Poet + "\n")
	}
	if len(p.Tags) > 0 {
		b.WriteString(keyTags + " " + strings.Join(p.Tags, ", ") + "\n")
	}
	b.WriteString(keyLayout + " " + string(p.Layout) + "\n")
	b.WriteString(keySize + " " + string(p.Size) + "\n")
	if p.Numbered {
		b.WriteString(keyNumbered + " true\n")
	} else {
		b.WriteString(keyNumbered + " false\n")
	}
	if len(p.Annotations) > 0 {
		if raw, err := json.Marshal(p.Annotations); err == nil {
			b.WriteString(keyAnnotations + " " + string(raw) + "\n")
		}
	}
	// Normally absent: migration clears the legacy field on parse. Kept for
	// completeness so an unmigrated in-memory poem is not silently lossy.
	if len(p.LegacyAnnotations) > 0 {
		if raw, err := json.Marshal(p.LegacyAnnotations); err == nil {
			b.WriteString(keyLegacy + " " + string(raw) + "\n")
		}
	}
	b.WriteString(Separator + "\n")
	for _, v := range p.Verses {
		b.WriteString(v.Sadr + " | " + v.Ajaz + "\n")
	}
	return b.String()
}
