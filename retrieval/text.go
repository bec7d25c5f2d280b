// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retrieval

import (
	"math"
	"strings"
)

// Stop words dropped from lexical queries when IgnoreStopWords is set
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "our": true,
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenize lowercases text and splits it on whitespace. No stemming and no
// punctuation stripping: tokens are matched as substrings.
func tokenize(text string, dropStopWords bool) []string {
	words := strings.Fields(strings.ToLower(text))
	if !dropStopWords {
		return words
	}

	filtered := words[:0]
	for _, word := range words {
		if !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// overlap is the fraction of tokens that occur in document, which must already be lowercase.
func overlap(document string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	found := 0
	for _, t := range tokens {
		if strings.Contains(document, t) {
			found++
		}
	}
	return float64(found) / float64(len(tokens))
}

// countContained returns how many of words occur in document.
func countContained(document string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(document, w) {
			n++
		}
	}
	return n
}

// Similarity converts a cosine distance into a similarity score in [0, 1].
// Distances outside [0, 1] and NaN are clamped rather than propagated.
func Similarity(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return clamp01(1 - distance)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
