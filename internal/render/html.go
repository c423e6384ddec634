/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"html"
	"strings"

	"godiwan/internal/domain"
)

// DefaultCSS is the built-in theme. Theme packs replace it wholesale.
const DefaultCSS = `.diwan { direction: rtl; font-family: "Amiri", "Scheherazade New", serif; margin: 1.5em auto; }
.diwan .diwan-title { text-align: center; font-weight: bold; margin-bottom: .25em; }
.diwan .diwan-poet { text-align: center; color: #666; margin-bottom: 1em; }
.diwan .diwan-verse { display: flex; justify-content: space-between; gap: 2em; margin: .4em 0; }
.diwan.layout-stacked .diwan-verse { flex-direction: column; gap: .1em; }
.diwan .diwan-ordinal { color: #999; min-width: 2em; }
.diwan.size-small { font-size: .9em; }
.diwan.size-large { font-size: 1.3em; }
.diwan .diwan-annot { border-bottom: 1px dotted #b58900; cursor: help; }`

// Fragment renders the poem as an embeddable HTML block. Layout, size and
// numbering hints become CSS classes on the wrapper so themes can target
// them; annotated runs carry their note in the title attribute.
func Fragment(p *domain.Poem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<div class=\"diwan layout-%s size-%s\" dir=\"rtl\">\n", p.Layout, p.Size)
	if p.Title != "" {
		fmt.Fprintf(&b, "  <div class=\"diwan-title\">%s</div>\n", html.EscapeString(p.Title))
	}
	if p.Poet != "" {
		fmt.Fprintf(&b, "  <div class=\"diwan-poet\">%s</div>\n", html.EscapeString(p.Poet))
	}
	for _, v := range PoemView(p) {
		b.WriteString("  <div class=\"diwan-verse\">")
		if p.Numbered {
			fmt.Fprintf(&b, "<span class=\"diwan-ordinal\">%d</span>", v.Ordinal)
		}
		b.WriteString("<span class=\"diwan-sadr\">")
		writeSegments(&b, v.Sadr)
		b.WriteString("</span><span class=\"diwan-ajaz\">")
		writeSegments(&b, v.Ajaz)
		b.WriteString("</span></div>\n")
	}
	b.WriteString("</div>\n")
	return b.String()
}

// Document wraps Fragment into a standalone page with the given stylesheet.
// An empty css falls back to DefaultCSS.
func Document(p *domain.Poem, css string) string {
	if css == "" {
		css = DefaultCSS
	}
	title := p.Title
	if title == "" {
		title = "diwan"
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"ar\" dir=\"rtl\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<style>\n%s\n</style>\n</head>\n<body>\n", css)
	b.WriteString(Fragment(p))
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func writeSegments(b *strings.Builder, segs []Segment) {
	for _, s := range segs {
		if s.Annotation == nil {
			b.WriteString(html.EscapeString(s.Text))
			continue
		}
		fmt.Fprintf(b, "<span class=\"diwan-annot\" title=\"%s\">%s</span>",
			html.EscapeString(s.Annotation.Note), html.EscapeString(s.Text))
	}
}
