package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// presentation covers the slide list of ppt/presentation.xml.
type presentation struct {
	Slides []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type relationships struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func openZip(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid office document: %w", err)
	}
	return zr, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// paragraphs streams an OOXML part and returns the text of every paragraph
// found inside a container element (w:body for Word, a:txBody for slides),
// grouped per container. Runs nested in hyperlinks, insertions, fields and
// table cells are included; run tabs and breaks become "\t" and "\n".
func paragraphs(content []byte, container string) ([][]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		groups  [][]string
		current []string
		line    strings.Builder
		depth   int
		inRun   int
		inText  bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case container:
				if depth == 0 {
					current = nil
				}
				depth++
			case "r":
				inRun++
			case "t":
				inText = depth > 0
			case "tab":
				// Tab stops in paragraph properties are also named tab.
				if depth > 0 && inRun > 0 {
					line.WriteString("\t")
				}
			case "br", "cr":
				if depth > 0 {
					line.WriteString("\n")
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "r":
				inRun--
			case "t":
				inText = false
			case "p":
				if depth > 0 {
					current = append(current, line.String())
					line.Reset()
				}
			case container:
				depth--
				if depth == 0 {
					groups = append(groups, current)
				}
			}
		case xml.CharData:
			if inText {
				line.Write(el)
			}
		}
	}
	return groups, nil
}

// docxText returns one line per paragraph, table cells included.
func docxText(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}

	f := findZipFile(zr, "word/document.xml")
	if f == nil {
		return "", fmt.Errorf("word/document.xml not found")
	}
	content, err := readZipFile(f)
	if err != nil {
		return "", fmt.Errorf("failed to read document.xml: %w", err)
	}

	groups, err := paragraphs(content, "body")
	if err != nil {
		return "", fmt.Errorf("failed to parse document.xml: %w", err)
	}

	var sb strings.Builder
	for _, g := range groups {
		for _, p := range g {
			sb.WriteString(p)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// slideOrder lists slide parts in the order of the deck's slide list. It
// falls back to the slideN.xml numbering when the list is missing.
func slideOrder(zr *zip.Reader) []*zip.File {
	if ordered := listedSlides(zr); len(ordered) > 0 {
		return ordered
	}

	type numbered struct {
		n int
		f *zip.File
	}
	var slides []numbered
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "ppt/slides/slide") || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, "ppt/slides/slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, numbered{n: n, f: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	out := make([]*zip.File, 0, len(slides))
	for _, s := range slides {
		out = append(out, s.f)
	}
	return out
}

func listedSlides(zr *zip.Reader) []*zip.File {
	presFile := findZipFile(zr, "ppt/presentation.xml")
	relsFile := findZipFile(zr, "ppt/_rels/presentation.xml.rels")
	if presFile == nil || relsFile == nil {
		return nil
	}

	var pres presentation
	var rels relationships
	if content, err := readZipFile(presFile); err != nil || xml.Unmarshal(content, &pres) != nil {
		return nil
	}
	if content, err := readZipFile(relsFile); err != nil || xml.Unmarshal(content, &rels) != nil {
		return nil
	}

	targets := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		target := r.Target
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join("ppt", target)
		}
		targets[r.ID] = target
	}

	var out []*zip.File
	for _, s := range pres.Slides {
		if f := findZipFile(zr, targets[s.RID]); f != nil {
			out = append(out, f)
		}
	}
	return out
}

// pptxText returns one line per paragraph, one text body after another,
// slides in presentation order.
func pptxText(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, f := range slideOrder(zr) {
		content, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", f.Name, err)
		}

		bodies, err := paragraphs(content, "txBody")
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		for _, lines := range bodies {
			if len(lines) == 0 {
				continue
			}
			sb.WriteString(strings.Join(lines, "\n"))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
