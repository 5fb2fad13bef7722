package pty

import "strings"

// PromptKind classifies a matched prompt signature.
type PromptKind int

const (
	// PromptPIN expects the secret followed by a newline.
	PromptPIN PromptKind = iota
	// PromptTouch expects no input; the device blocks until physically touched.
	PromptTouch
	// PromptConfirm expects a yes/no answer (slot overwrite confirmation).
	PromptConfirm
	// PromptError marks known failure output from the external tool.
	PromptError
)

// Prompt is one entry in the signature table. Matching is plain substring
// search against the unscanned output region, in table order, so new CLI
// versions are supported by adding rows, not control flow.
type Prompt struct {
	Kind    PromptKind
	Pattern string
}

// DefaultPrompts covers age, age-plugin-yubikey and ykman output across
// platforms.
var DefaultPrompts = []Prompt{
	{PromptPIN, "Enter PIN"},
	{PromptPIN, "PIN for"},
	{PromptPIN, "PIN:"},
	{PromptTouch, "Please touch"},
	{PromptTouch, "Touch your"},
	{PromptTouch, "waiting on"}, // age: "waiting on yubikey plugin..."
	{PromptConfirm, "Overwrite? [y/N]"},
	{PromptConfirm, "[y/N]"},
	{PromptError, "error"},
	{PromptError, "Error"},
	{PromptError, "failed"},
	{PromptError, "Failed"},
}

// match scans buf against the table in order and returns the first entry
// found, with the end offset of the matched pattern so the caller can clear
// the consumed region. Table order decides priority, not position in buf.
func match(prompts []Prompt, buf string) (Prompt, int, bool) {
	for _, p := range prompts {
		if idx := strings.Index(buf, p.Pattern); idx >= 0 {
			return p, idx + len(p.Pattern), true
		}
	}
	return Prompt{}, 0, false
}

// looksLikePrompt reports whether the tail of buf resembles an interactive
// prompt nothing in the table recognized: a non-empty unterminated line ending
// in ':' or '?'.
func looksLikePrompt(buf string) bool {
	if strings.HasSuffix(buf, "\n") {
		return false
	}
	lines := strings.Split(buf, "\n")
	tail := strings.TrimSpace(stripAnsi(lines[len(lines)-1]))
	return strings.HasSuffix(tail, ":") || strings.HasSuffix(tail, "?")
}

// stripAnsi removes ANSI escape sequences so signature matching sees the same
// text on every platform.
func stripAnsi(s string) string {
	var b strings.Builder
	inEscape := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inEscape:
			// CSI sequences end with a byte in 0x40-0x7E.
			if c >= 0x40 && c <= 0x7E && c != '[' {
				inEscape = false
			}
		case c == 0x1b:
			inEscape = true
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
