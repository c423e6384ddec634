/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders poems to print formats.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"godiwan/internal/domain"
	"godiwan/internal/storage"
)

// PDFOptions controls PDF export behavior. Units are points (pt).
//
// Arabic text needs an embedded UTF-8 TTF; the built-in core fonts only
// cover Latin. When FontPath is empty the exporter falls back to Helvetica,
// which renders metadata and Latin content but not the verses themselves.
// Glyph shaping is left to the font; no bidi reordering is attempted, the
// text is written in logical order with right alignment.
type PDFOptions struct {
	FontPath string  // path to a TTF with Arabic coverage, e.g. Amiri
	FontSize float64 // verse size in pt; 0 means 14
	Title    string  // PDF document title; empty falls back to the poem title
}

const (
	pageW     = 595.28 // A4 portrait in pt
	pageH     = 841.89
	marginX   = 56.0
	marginTop = 64.0
	lineGap   = 1.6
)

// ExportPoemPDF writes one poem to a single-column PDF at outPath. A
// relative outPath lands in the workspace exports folder next to the
// document in root.
func ExportPoemPDF(root string, p *domain.Poem, outPath string, opt PDFOptions) error {
	if p == nil {
		return fmt.Errorf("poem is nil")
	}
	size := opt.FontSize
	if size <= 0 {
		size = 14
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pageW, Ht: pageH},
		OrientationStr: "",
	})
	title := opt.Title
	if title == "" {
		title = p.Title
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor(p.Poet, true)

	family := "Helvetica"
	if opt.FontPath != "" {
		family = "diwan"
		pdf.AddUTF8Font(family, "", opt.FontPath)
		if pdf.Err() {
			return fmt.Errorf("load font %s: %v", opt.FontPath, pdf.Error())
		}
	}

	pdf.AddPage()
	y := marginTop

	if p.Title != "" {
		pdf.SetFont(family, "", size+6)
		pdf.SetXY(marginX, y)
		pdf.CellFormat(pageW-2*marginX, (size+6)*lineGap, p.Title, "", 0, "C", false, 0, "")
		y += (size + 6) * lineGap
	}
	if p.Poet != "" {
		pdf.SetFont(family, "", size-2)
		pdf.SetTextColor(100, 100, 100)
		pdf.SetXY(marginX, y)
		pdf.CellFormat(pageW-2*marginX, size*lineGap, p.Poet, "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		y += size * lineGap * 1.5
	}

	pdf.SetFont(family, "", size)
	lineH := size * lineGap
	colW := (pageW - 2*marginX) / 2

	for i, v := range p.Verses {
		if y+2*lineH > pageH-marginTop {
			pdf.AddPage()
			y = marginTop
		}
		if p.Numbered {
			pdf.SetFont(family, "", size-4)
			pdf.SetTextColor(150, 150, 150)
			pdf.SetXY(marginX-36, y)
			pdf.CellFormat(30, lineH, fmt.Sprintf("%d", i+1), "", 0, "R", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
			pdf.SetFont(family, "", size)
		}
		if p.Layout == domain.LayoutStacked {
			// sadr on its own line, ajaz indented below
			pdf.SetXY(marginX, y)
			pdf.CellFormat(pageW-2*marginX, lineH, v.Sadr, "", 0, "R", false, 0, "")
			y += lineH
			pdf.SetXY(marginX, y)
			pdf.CellFormat(pageW-2*marginX-24, lineH, v.Ajaz, "", 0, "R", false, 0, "")
			y += lineH
		} else {
			// classical two-column bayt: sadr right, ajaz left
			pdf.SetXY(marginX+colW, y)
			pdf.CellFormat(colW, lineH, v.Sadr, "", 0, "R", false, 0, "")
			pdf.SetXY(marginX, y)
			pdf.CellFormat(colW-12, lineH, v.Ajaz, "", 0, "R", false, 0, "")
			y += lineH
		}
	}

	if len(p.Annotations) > 0 {
		y += lineH
		if y+float64(len(p.Annotations)+1)*lineH > pageH-marginTop {
			pdf.AddPage()
			y = marginTop
		}
		pdf.SetDrawColor(180, 180, 180)
		pdf.Line(marginX, y, pageW-marginX, y)
		y += lineH * 0.5
		pdf.SetFont(family, "", size-3)
		for _, a := range p.Annotations {
			pdf.SetXY(marginX, y)
			pdf.CellFormat(pageW-2*marginX, lineH, fmt.Sprintf("%s: %s", a.Text, a.Note), "", 0, "R", false, 0, "")
			y += lineH
		}
	}

	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(root, storage.WorkspaceDirName, storage.ExportsDirName, outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
