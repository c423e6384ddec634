/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"strings"
)

const (
	// FenceOpen marks the start of a diwan block inside a Markdown document.
	FenceOpen  = "```diwan"
	FenceClose = "```"
)

// ErrBlockNotFound is returned when a replace targets block content that no
// longer exists in the document, typically because it was edited externally.
var ErrBlockNotFound = errors.New("diwan block not found in document")

// Block is one fenced diwan block found in a Markdown document. Content is
// the text between the fences without the fence lines; Ord is the 0-based
// position of the block within the document.
type Block struct {
	Ord     int
	Line    int // 1-based line of the opening fence
	Content string
}

// FindBlocks extracts all diwan blocks from a Markdown document. An
// unterminated fence at the end of the document is ignored rather than
// treated as a block.
func FindBlocks(doc string) []Block {
	var blocks []Block
	lines := strings.Split(doc, "\n")
	var body []string
	open := false
	openLine := 0
	for i, line := range lines {
		t := strings.TrimSpace(line)
		switch {
		case !open && t == FenceOpen:
			open = true
			openLine = i + 1
			body = body[:0]
		case open && t == FenceClose:
			blocks = append(blocks, Block{Ord: len(blocks), Line: openLine, Content: strings.Join(body, "\n")})
			open = false
		case open:
			body = append(body, line)
		}
	}
	return blocks
}

// ReplaceBlock swaps the content of the first diwan block whose body exactly
// matches oldContent. The surrounding Markdown is left byte-for-byte intact;
// ErrBlockNotFound is returned when no block matches.
func ReplaceBlock(doc, oldContent, newContent string) (string, error) {
	newContent = strings.TrimRight(newContent, "\n")
	lines := strings.Split(doc, "\n")
	var body []string
	open := false
	openIdx := 0
	for i, line := range lines {
		t := strings.TrimSpace(line)
		switch {
		case !open && t == FenceOpen:
			open = true
			openIdx = i
			body = body[:0]
		case open && t == FenceClose:
			if strings.Join(body, "\n") == oldContent {
				out := make([]string, 0, len(lines))
				out = append(out, lines[:openIdx+1]...)
				if newContent != "" {
					out = append(out, strings.Split(newContent, "\n")...)
				}
				out = append(out, lines[i:]...)
				return strings.Join(out, "\n"), nil
			}
			open = false
		case open:
			body = append(body, line)
		}
	}
	return "", ErrBlockNotFound
}

// AppendBlock adds a new diwan block at the end of the document, separated
// by a blank line when the document does not already end in one.
func AppendBlock(doc, content string) string {
	content = strings.TrimRight(content, "\n")
	var b strings.Builder
	b.WriteString(doc)
	if doc != "" && !strings.HasSuffix(doc, "\n") {
		b.WriteString("\n")
	}
	if doc != "" && !strings.HasSuffix(doc, "\n\n") {
		b.WriteString("\n")
	}
	b.WriteString(FenceOpen)
	b.WriteString("\n")
	b.WriteString(content)
	b.WriteString("\n")
	b.WriteString(FenceClose)
	b.WriteString("\n")
	return b.String()
}
