package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/stypes"

	"github.com/houzhh15/wxscribe/cmd/wxscribe/internal/whisper"
)

const (
	greyColor = "808080"
	// tableStyle ships with the godocx template: single 4F81BD borders.
	tableStyle = "LightGrid-Accent1"
	corePart   = "docProps/core.xml"
)

// render builds the transcript document on the godocx default template.
func render(segments []whisper.Segment, meta RunMetadata, now time.Time) (*docx.RootDoc, error) {
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("new document: %w", err)
	}
	stamp := now.Format("02/01/2006 15:04")

	title := doc.AddEmptyParagraph()
	title.Justification(stypes.JustificationCenter)
	title.AddText(meta.Title).Size(24).Bold(true)
	doc.AddEmptyParagraph()

	doc.AddEmptyParagraph().AddText("Information").Size(14).Bold(true)
	table := doc.AddTable()
	table.Style(tableStyle)
	for _, row := range [][2]string{
		{"File", meta.Filename},
		{"Duration", meta.Duration},
		{"Model", meta.Model},
		{"Language", meta.Language},
		{"Date", stamp},
	} {
		r := table.AddRow()
		r.AddCell().AddEmptyPara().AddText(row[0]).Size(11).Bold(true)
		r.AddCell().AddEmptyPara().AddText(row[1]).Size(11)
	}
	doc.AddEmptyParagraph()

	doc.AddEmptyParagraph().AddText("Transcript").Size(14).Bold(true)
	doc.AddEmptyParagraph()

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		p := doc.AddEmptyParagraph()
		p.AddText("[" + FormatTimestamp(seg.Start) + "] ").Size(9).Color(greyColor)
		p.AddText(text).Size(11)
	}

	doc.AddEmptyParagraph()
	footer := doc.AddEmptyParagraph()
	footer.Justification(stypes.JustificationCenter)
	footer.AddText("Generated on " + stamp + " with wxscribe").Size(8).Color(greyColor)

	doc.FileMap.Store(corePart, coreXML(meta.Title, now.UTC().Format(time.RFC3339)))
	return doc, nil
}

// coreXML replaces the template's package properties.
func coreXML(title, created string) []byte {
	var out bytes.Buffer
	out.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	out.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><dc:title>`)
	_ = xml.EscapeText(&out, []byte(title))
	out.WriteString(`</dc:title><dc:creator>wxscribe</dc:creator><dcterms:created xsi:type="dcterms:W3CDTF">`)
	out.WriteString(created)
	out.WriteString(`</dcterms:created><dcterms:modified xsi:type="dcterms:W3CDTF">`)
	out.WriteString(created)
	out.WriteString(`</dcterms:modified></cp:coreProperties>`)
	return out.Bytes()
}
