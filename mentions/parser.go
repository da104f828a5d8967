package mentions

import "regexp"

// mentionPattern matches an @ followed by a mention body, ported from
// parser.py's MENTION_PATTERN capture group. The original excludes emails
// via a negative lookahead for `localpart@domain.tld`; Go's RE2 has no
// lookaround, so emails are instead rejected post-match in ParseMentions by
// checking the character immediately preceding the @ (an email's @ is
// always glued to its local part; a mention's is not).
var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9_:./~-]+)`)

// emailLocalPartChar matches characters legal in an email address's local
// part when they directly precede an @, marking that @ as part of an email
// rather than the start of a mention.
func isEmailLocalPartChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '%' || r == '+' || r == '-':
		return true
	}
	return false
}

// fencedCodeBlockPattern strips fenced code blocks whose opening fence
// starts at the beginning of a line, mirroring _remove_code_blocks's
// `(?:^|\n)```[^\n]*\n.*?(?:^|\n)```` (DOTALL, MULTILINE).
var fencedCodeBlockPattern = regexp.MustCompile(`(?s)(?:^|\n)` + "```" + `[^\n]*\n.*?(?:^|\n)` + "```")

// inlineCodePattern strips single-backtick inline code spans. Applied only
// after fenced blocks are removed, so it never crosses a triple-backtick
// fence.
var inlineCodePattern = regexp.MustCompile("`[^`\n]+`")

// ParseMentions extracts every @mention from text, in first-seen order with
// duplicates removed, ignoring mentions inside fenced or inline code spans
// and @ signs that are part of an email address.
func ParseMentions(text string) []string {
	stripped := stripCodeSpans(text)

	seen := make(map[string]bool)
	var out []string
	for _, idx := range mentionPattern.FindAllStringSubmatchIndex(stripped, -1) {
		atPos := idx[0]
		if atPos > 0 {
			prev := []rune(stripped[:atPos])
			if len(prev) > 0 && isEmailLocalPartChar(prev[len(prev)-1]) {
				continue
			}
		}

		mention := "@" + stripped[idx[2]:idx[3]]
		if seen[mention] {
			continue
		}
		seen[mention] = true
		out = append(out, mention)
	}
	return out
}

func stripCodeSpans(text string) string {
	text = fencedCodeBlockPattern.ReplaceAllString(text, "")
	text = inlineCodePattern.ReplaceAllString(text, "")
	return text
}
