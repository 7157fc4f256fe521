package message

import (
	"strings"

	"gitlab.com/zephyrtronium/tmi"
)

// FromIRC adapts an IRC PRIVMSG. If strip is true, mIRC formatting codes are
// removed from the text.
func FromIRC(m *tmi.Message, strip bool) *Received {
	text := m.Trailing
	if strip {
		text = StripFormatting(text)
	}
	r := Received{
		From: m.Nick,
		To:   m.To(),
		Text: text,
	}
	return &r
}

// ToIRC creates a PRIVMSG to send. The text is sent as-is; the caller is
// responsible for fitting it to a single line.
func ToIRC(msg Sent) *tmi.Message {
	return tmi.Privmsg(msg.To, msg.Text)
}

const (
	fmtBold      = '\x02'
	fmtColor     = '\x03'
	fmtHexColor  = '\x04'
	fmtReset     = '\x0f'
	fmtMonospace = '\x11'
	fmtReverse   = '\x16'
	fmtItalic    = '\x1d'
	fmtStrike    = '\x1e'
	fmtUnderline = '\x1f'
)

// StripFormatting removes mIRC color and formatting control codes from s.
func StripFormatting(s string) string {
	if !strings.ContainsFunc(s, isFormat) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case fmtColor:
			// ^C[fg[,bg]] with one or two digits each.
			i += digits(s[i+1:], 2)
			if i+2 < len(s) && s[i+1] == ',' && digits(s[i+2:], 2) > 0 {
				i += 1 + digits(s[i+2:], 2)
			}
		case fmtHexColor:
			// ^DRRGGBB[,RRGGBB]
			i += hexes(s[i+1:])
			if i+2 < len(s) && s[i+1] == ',' && hexes(s[i+2:]) > 0 {
				i += 1 + hexes(s[i+2:])
			}
		case fmtBold, fmtReset, fmtMonospace, fmtReverse, fmtItalic, fmtStrike, fmtUnderline:
			// drop
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isFormat(r rune) bool {
	switch r {
	case fmtBold, fmtColor, fmtHexColor, fmtReset, fmtMonospace, fmtReverse, fmtItalic, fmtStrike, fmtUnderline:
		return true
	}
	return false
}

// digits returns the number of leading ASCII digits in s, up to max.
func digits(s string, max int) int {
	n := 0
	for n < max && n < len(s) && '0' <= s[n] && s[n] <= '9' {
		n++
	}
	return n
}

// hexes returns 6 if s begins with six hex digits, otherwise 0.
func hexes(s string) int {
	if len(s) < 6 {
		return 0
	}
	for i := range 6 {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return 0
		}
	}
	return 6
}
