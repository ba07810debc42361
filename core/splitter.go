package core

import "unicode"

// SplitText splits a transcript into chunks of at most size runes, carrying
// a fixed overlap between consecutive chunks so context is not lost at the
// boundaries. Cut points prefer the latest paragraph break inside the
// window, then a line break, then a sentence end, then a word gap, before
// falling back to a hard cut at the window edge. Splitting is deterministic:
// the same text and parameters always produce the same boundaries.
func SplitText(text string, size, overlap int) []string {
	r := []rune(text)
	if len(r) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	if len(r) <= size {
		return []string{text}
	}

	chunks := make([]string, 0, len(r)/(size-overlap)+1)
	start := 0
	for len(r)-start > size {
		// The cut must leave more than overlap runes in the chunk, or the
		// window would stop advancing.
		cut := findCut(r, start+overlap+1, start+size)
		chunks = append(chunks, string(r[start:cut]))
		start = cut - overlap
	}
	chunks = append(chunks, string(r[start:]))
	return chunks
}

// findCut picks a cut index in (min, max], scanning backwards for the most
// preferred boundary. Returns max when no boundary lands inside the window.
func findCut(r []rune, min, max int) int {
	if min < 1 {
		min = 1
	}
	for i := max; i > min; i-- {
		if r[i-1] == '\n' && i >= 2 && r[i-2] == '\n' {
			return i
		}
	}
	for i := max; i > min; i-- {
		if r[i-1] == '\n' {
			return i
		}
	}
	for i := max; i > min; i-- {
		if unicode.IsSpace(r[i-1]) && i >= 2 && isSentenceEnd(r[i-2]) {
			return i
		}
	}
	for i := max; i > min; i-- {
		if unicode.IsSpace(r[i-1]) {
			return i
		}
	}
	return max
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
