package ingestion

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poiesic/clearance/core"
)

// DocumentType names the format a chunk was cut from.
type DocumentType string

const (
	TypeMarkdown DocumentType = "markdown"
	TypeCSV      DocumentType = "csv"
)

// idTag is the short form used in chunk IDs.
func (t DocumentType) idTag() string {
	if t == TypeCSV {
		return "csv"
	}
	return "md"
}

// TypeOf returns the document type for a file name, or false when the
// file is not ingestible.
func TypeOf(path string) (DocumentType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return TypeMarkdown, true
	case ".csv":
		return TypeCSV, true
	}
	return "", false
}

// ChunkID derives the stable ID of the i-th chunk of a source file.
func ChunkID(department, source string, docType DocumentType, i int) core.ID {
	return core.IDFromContent(fmt.Sprintf("%s-%s-%s-%d", department, source, docType.idTag(), i))
}

// Document is a source file read from a department folder.
type Document struct {
	Department string
	Path       string
	Source     string // base name
	Type       DocumentType
	Content    []byte
}

// Digest identifies the file contents.
func (d *Document) Digest() core.ID {
	return core.IDFromContent(string(d.Content))
}

// Chunks cuts the document into passages.
func (d *Document) Chunks() ([]string, error) {
	switch d.Type {
	case TypeMarkdown:
		return ChunkMarkdown(strings.TrimSpace(string(d.Content))), nil
	case TypeCSV:
		return ChunkCSV(bytes.NewReader(d.Content))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, d.Path)
}

// LoadDocument reads one source file.
func LoadDocument(department, path string) (*Document, error) {
	docType, ok := TypeOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Document{
		Department: department,
		Path:       path,
		Source:     filepath.Base(path),
		Type:       docType,
		Content:    content,
	}, nil
}

// listDocuments returns the ingestible files of a department folder,
// markdown first, each group sorted by name.
func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var markdown, tables []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		switch docType, _ := TypeOf(entry.Name()); docType {
		case TypeMarkdown:
			markdown = append(markdown, filepath.Join(dir, entry.Name()))
		case TypeCSV:
			tables = append(tables, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(markdown)
	slices.Sort(tables)
	return append(markdown, tables...), nil
}

// listDepartments returns the department folders under root, sorted.
func listDepartments(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var departments []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			departments = append(departments, entry.Name())
		}
	}
	slices.Sort(departments)
	return departments, nil
}
