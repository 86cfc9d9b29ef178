// Package pptx extracts slide text from PowerPoint archives. A .pptx
// file is a zip with one DrawingML document per slide; text lives in
// <a:t> runs grouped into <a:p> paragraphs.
package pptx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const drawingMLNS = "http://schemas.openxmlformats.org/drawingml/2006/main"

// Slide is one slide with its extracted text. Text is empty for slides
// without any text frames.
type Slide struct {
	Number int    `json:"slide_number"`
	Text   string `json:"text"`
}

// HasText reports whether the slide carries any text.
func (s Slide) HasText() bool { return s.Text != "" }

// Parse reads a .pptx file and returns every slide in presentation
// order, numbered from 1.
func Parse(path string) ([]Slide, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	defer reader.Close()
	return parseArchive(&reader.Reader)
}

// ParseReader parses a .pptx archive from an in-memory reader.
func ParseReader(r io.ReaderAt, size int64) ([]Slide, error) {
	reader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	return parseArchive(reader)
}

func parseArchive(reader *zip.Reader) ([]Slide, error) {
	type slideFile struct {
		order int
		file  *zip.File
	}

	var files []slideFile
	for _, f := range reader.File {
		order, ok := slideOrder(f.Name)
		if !ok {
			continue
		}
		files = append(files, slideFile{order: order, file: f})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("archive contains no slides")
	}

	sort.Slice(files, func(i, j int) bool { return files[i].order < files[j].order })

	slides := make([]Slide, 0, len(files))
	for i, sf := range files {
		rc, err := sf.file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", sf.file.Name, err)
		}
		text, err := extractText(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", sf.file.Name, err)
		}
		slides = append(slides, Slide{Number: i + 1, Text: text})
	}
	return slides, nil
}

// slideOrder extracts the N from "ppt/slides/slideN.xml".
func slideOrder(name string) (int, bool) {
	const prefix = "ppt/slides/slide"
	const suffix = ".xml"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(prefix) : len(name)-len(suffix)])
	if err != nil {
		return 0, false
	}
	return n, true
}

// extractText walks one slide document and joins its non-empty
// paragraphs with single spaces.
func extractText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var paragraphs []string
	var paragraph strings.Builder
	inRun := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch tok := token.(type) {
		case xml.StartElement:
			if tok.Name.Space == drawingMLNS && tok.Name.Local == "t" {
				inRun = true
			}
		case xml.CharData:
			if inRun {
				paragraph.Write(tok)
			}
		case xml.EndElement:
			if tok.Name.Space != drawingMLNS {
				continue
			}
			switch tok.Name.Local {
			case "t":
				inRun = false
			case "p":
				if text := strings.TrimSpace(paragraph.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				paragraph.Reset()
			}
		}
	}

	// A trailing run outside any closed paragraph still counts.
	if text := strings.TrimSpace(paragraph.String()); text != "" {
		paragraphs = append(paragraphs, text)
	}

	return strings.Join(paragraphs, " "), nil
}
