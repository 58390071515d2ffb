package llm

import (
	"strings"
)

// ExtractFencedBlock pulls the contents of a Markdown code fence out of
// LLM output. It tries, in order: a fence labelled with lang, any fence,
// and finally the whole text trimmed. Model output is untrusted free
// text; a missing delimiter must never fail the caller.
func ExtractFencedBlock(text, lang string) string {
	if lang != "" {
		if block, ok := between(text, "```"+lang, "```"); ok {
			return strings.TrimSpace(block)
		}
	}
	if block, ok := between(text, "```", "```"); ok {
		// Drop a language tag left on the opening fence line.
		if idx := strings.IndexByte(block, '\n'); idx >= 0 && !strings.ContainsAny(block[:idx], " \t{") {
			block = block[idx+1:]
		}
		return strings.TrimSpace(block)
	}
	return strings.TrimSpace(text)
}

// VerdictIsPass scans judgment text case-insensitively for the literal
// token "YES". The oracle is fuzzy and advisory: anything else, including
// text with no verdict at all, counts as a fail.
func VerdictIsPass(text string) bool {
	return strings.Contains(strings.ToUpper(text), "YES")
}

func between(text, open, closing string) (string, bool) {
	start := strings.Index(text, open)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(open):]
	end := strings.Index(rest, closing)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
