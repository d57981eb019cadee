package docpipe

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// extractODT parses content.xml from an .odt archive. Headings (text:h) and
// paragraphs (text:p) become body paragraphs; table:table elements become
// tables.
func extractODT(path string) (*wordDocument, error) {
	rc, closeZip, err := openZipMember(path, "content.xml")
	if err != nil {
		return nil, err
	}
	defer closeZip()
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	doc := &wordDocument{}
	var (
		guard      depthGuard
		tables     tableBuilder
		block      strings.Builder
		blockDepth int // nesting of text:p / text:h, spans may contain notes
		isHeading  bool
	)

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
			case "table":
				tables.startTable()
			case "table-row":
				tables.startRow()
			case "table-cell":
				tables.startCell()
			case "h", "p":
				if blockDepth == 0 {
					block.Reset()
					isHeading = t.Name.Local == "h"
				}
				blockDepth++
			case "s":
				if blockDepth > 0 {
					n := 1
					for _, a := range t.Attr {
						if a.Name.Local == "c" {
							if v, err := strconv.Atoi(a.Value); err == nil && v > 0 {
								n = v
							}
						}
					}
					block.WriteString(strings.Repeat(" ", n))
				}
			case "tab":
				if blockDepth > 0 {
					block.WriteByte('\t')
				}
			case "line-break":
				if blockDepth > 0 {
					block.WriteByte('\n')
				}
			}

		case xml.CharData:
			if blockDepth > 0 {
				block.Write(t)
			}

		case xml.EndElement:
			guard.leave()
			switch t.Name.Local {
			case "h", "p":
				if blockDepth == 0 {
					continue
				}
				blockDepth--
				if blockDepth > 0 {
					continue
				}
				text := strings.TrimSpace(block.String())
				if tables.inTable() {
					tables.addParagraph(text)
					continue
				}
				if text == "" {
					continue
				}
				if isHeading && doc.title == "" {
					doc.title = text
				}
				doc.paragraphs = append(doc.paragraphs, text)
			case "table-cell":
				tables.endCell()
			case "table-row":
				tables.endRow()
			case "table":
				if rows, ok := tables.endTable(); ok {
					doc.tables = append(doc.tables, rows)
				}
			}
		}
	}

	return doc, nil
}
