package phrase

import "unicode/utf8"

// Split breaks text into lines of at most max bytes, preferring to break at
// the last space that keeps a line within the limit. The space at each break
// is dropped. A word longer than max is cut at max bytes, backed off to the
// start of a UTF-8 sequence when possible. The final remainder is always the
// last line, even if it is empty. If max <= 0, the result is just text.
func Split(text string, max int) []string {
	if max <= 0 {
		return []string{text}
	}
	var r []string
	for len(text) > max {
		// text[max] is the first byte that doesn't fit. If it is a space, the
		// first max bytes are a complete line.
		k := max
		for k > 0 && text[k] != ' ' {
			k--
		}
		if k > 0 {
			r = append(r, text[:k])
			text = text[k+1:]
			continue
		}
		k = max
		for k > 0 && !utf8.RuneStart(text[k]) {
			k--
		}
		if k == 0 {
			k = max
		}
		r = append(r, text[:k])
		text = text[k:]
	}
	return append(r, text)
}
