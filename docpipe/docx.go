package docpipe

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// extractDocx parses word/document.xml from a .docx archive. Body
// paragraphs and tables are collected separately; paragraphs inside table
// cells belong to the table only. A paragraph nested in another (a text box
// anchored in a run) is emitted on its own and the outer paragraph keeps
// its text. mc:Fallback branches repeat their mc:Choice and are skipped.
func extractDocx(path string) (*wordDocument, error) {
	rc, closeZip, err := openZipMember(path, "word/document.xml")
	if err != nil {
		return nil, err
	}
	defer closeZip()
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	doc := &wordDocument{}
	var (
		guard  depthGuard
		tables tableBuilder
		paras  []*docxParagraph
		inText bool
	)
	top := func() *docxParagraph {
		if len(paras) == 0 {
			return nil
		}
		return paras[len(paras)-1]
	}

	for {
		tok, done, err := nextToken(decoder)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := guard.enter(); err != nil {
				return nil, err
			}
			switch t.Name.Local {
			case "Fallback":
				if err := decoder.Skip(); err != nil {
					return nil, fmt.Errorf("parse xml: %w", err)
				}
				guard.leave()
			case "tbl":
				tables.startTable()
			case "tr":
				tables.startRow()
			case "tc":
				tables.startCell()
			case "p":
				paras = append(paras, &docxParagraph{})
			case "pStyle":
				if p := top(); p != nil {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							p.style = attr.Value
						}
					}
				}
			case "t":
				inText = true
			case "tab":
				if p := top(); p != nil {
					p.text.WriteByte('\t')
				}
			case "br", "cr":
				if p := top(); p != nil {
					p.text.WriteByte('\n')
				}
			}

		case xml.CharData:
			if p := top(); p != nil && inText {
				p.text.Write(t)
			}

		case xml.EndElement:
			guard.leave()
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				p := top()
				if p == nil {
					continue
				}
				paras = paras[:len(paras)-1]
				text := strings.TrimSpace(p.text.String())
				if tables.inTable() {
					tables.addParagraph(text)
					continue
				}
				if text == "" {
					continue
				}
				if doc.title == "" && docxHeadingLevel(p.style) > 0 {
					doc.title = text
				}
				doc.paragraphs = append(doc.paragraphs, text)
			case "tc":
				tables.endCell()
			case "tr":
				tables.endRow()
			case "tbl":
				if rows, ok := tables.endTable(); ok {
					doc.tables = append(doc.tables, rows)
				}
			}
		}
	}

	return doc, nil
}

type docxParagraph struct {
	text  strings.Builder
	style string
}

// docxHeadingLevel extracts the heading level from a paragraph style name.
// "Heading2" is 2, "Title" is 1, anything unrecognised is 0.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}

	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}
