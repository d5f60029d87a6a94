package chat

import "strings"

// Verdict classifies one chat message.
type Verdict int

const (
	// Clean passes unchanged.
	Clean Verdict = iota
	// Filtered passes with offending words masked.
	Filtered
	// Rejected is dropped; the sender gets an error frame.
	Rejected
)

// Filter classifies chat content before broadcast.
type Filter interface {
	Check(content string) (Verdict, string)
}

// Passthrough accepts everything unchanged.
type Passthrough struct{}

// Check always returns Clean.
func (Passthrough) Check(content string) (Verdict, string) {
	return Clean, content
}

// WordList masks words on the mask list and rejects messages containing
// any word on the block list. Matching is case-insensitive on whitespace
// separated tokens.
type WordList struct {
	block map[string]struct{}
	mask  map[string]struct{}
}

// NewWordList builds a filter from the two word lists.
func NewWordList(blockWords, maskWords []string) *WordList {
	f := &WordList{
		block: make(map[string]struct{}, len(blockWords)),
		mask:  make(map[string]struct{}, len(maskWords)),
	}
	for _, w := range blockWords {
		f.block[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range maskWords {
		f.mask[strings.ToLower(w)] = struct{}{}
	}
	return f
}

// Check classifies the content and returns the broadcastable form.
func (f *WordList) Check(content string) (Verdict, string) {
	fields := strings.Fields(content)
	masked := false
	out := content

	for _, word := range fields {
		key := strings.ToLower(strings.Trim(word, ".,!?;:\"'"))
		if _, ok := f.block[key]; ok {
			return Rejected, ""
		}
		if _, ok := f.mask[key]; ok {
			out = strings.ReplaceAll(out, word, strings.Repeat("*", len([]rune(word))))
			masked = true
		}
	}

	if masked {
		return Filtered, out
	}
	return Clean, out
}
