package ingestion

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"
)

const (
	// MaxChunkSize bounds markdown chunks, in bytes of text.
	MaxChunkSize = 1000
	// OverlapSentences is how many sentences of the previous chunk open the next one.
	OverlapSentences = 2
	// MaxRowSize bounds CSV chunks, in characters.
	MaxRowSize = 1200
)

// CSVSeparator joins the cells of a CSV row.
const CSVSeparator = " | "

var (
	headingLine = regexp.MustCompile(`^#{1,6} `)
	headerCell  = regexp.MustCompile(`^\s*[\p{L}\p{N}_\s]+\s*$`)
)

// ChunkMarkdown splits a markdown document into sections at heading lines
// and chunks each section on sentence boundaries.
func ChunkMarkdown(text string) []string {
	var chunks []string
	for _, section := range splitSections(text) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		chunks = append(chunks, chunkSentences(section, MaxChunkSize)...)
	}
	return chunks
}

// splitSections cuts text before every heading line.
func splitSections(text string) []string {
	var (
		sections []string
		current  strings.Builder
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		if headingLine.MatchString(line) && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// splitSentences splits after '.', '!' or '?' when followed by one or more spaces.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
		default:
			continue
		}
		j := i + 1
		for j < len(text) && text[j] == ' ' {
			j++
		}
		if j == i+1 {
			continue
		}
		sentences = append(sentences, text[start:i+1])
		start = j
		i = j - 1
	}
	return append(sentences, text[start:])
}

// chunkSentences packs sentences into chunks shorter than size. When a chunk
// closes, the next one starts with the previous OverlapSentences sentences
// and the sentence that did not fit.
func chunkSentences(text string, size int) []string {
	sentences := splitSentences(text)

	var (
		chunks []string
		buffer string
	)
	for i, sentence := range sentences {
		if len(buffer)+len(sentence) < size {
			buffer += " " + sentence
			continue
		}
		if s := strings.TrimSpace(buffer); s != "" {
			chunks = append(chunks, s)
		}
		buffer = strings.Join(sentences[max(0, i-OverlapSentences):i+1], " ")
	}
	if s := strings.TrimSpace(buffer); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// ChunkCSV turns each data row into one chunk of its non-empty cells joined
// by CSVSeparator. The first row is dropped when every cell looks like a
// column name. Rows longer than MaxRowSize are split into fixed pieces.
func ChunkCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var chunks []string
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if row == 0 && isHeader(record) {
			continue
		}

		cells := make([]string, 0, len(record))
		for _, cell := range record {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) == 0 {
			continue
		}
		chunks = append(chunks, splitFixed(strings.Join(cells, CSVSeparator), MaxRowSize)...)
	}
	return chunks, nil
}

func isHeader(record []string) bool {
	for _, cell := range record {
		if !headerCell.MatchString(cell) {
			return false
		}
	}
	return true
}

// splitFixed cuts text into pieces of at most size runes.
func splitFixed(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	pieces := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		pieces = append(pieces, string(runes[start:min(start+size, len(runes))]))
	}
	return pieces
}
