package config

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// shellOperators are rejected when unquoted: commands are executed directly,
// so a pipe or redirect would reach the program as a literal argument.
var shellOperators = []string{"|", "||", "&", "&&", ";", "<", ">", ">>"}

// ParseCommand splits raw into argv for direct execution. key names the
// config field in errors.
func ParseCommand(key string, raw string) (CommandConfig, error) {
	words, err := splitWords(strings.TrimSpace(raw))
	if err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", key, err)
	}

	var argv []string
	for _, w := range words {
		if !w.quoted && slices.Contains(shellOperators, w.text) {
			return CommandConfig{}, fmt.Errorf("invalid %s: shell operator %q is not supported; wrap the command in sh -c '...'", key, w.text)
		}
		argv = append(argv, w.text)
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

// String renders the command for diagnostics.
func (c CommandConfig) String() string {
	if raw := strings.TrimSpace(c.Raw); raw != "" {
		return raw
	}
	return strings.Join(c.Argv, " ")
}

type word struct {
	text   string
	quoted bool
}

// splitWords tokenizes like a POSIX shell for plain words, single and double
// quotes, and backslash escapes. Nothing is expanded.
func splitWords(input string) ([]word, error) {
	var (
		words  []word
		buf    []rune
		inWord bool
		quoted bool
	)
	flush := func() {
		if inWord {
			words = append(words, word{text: string(buf), quoted: quoted})
		}
		buf = buf[:0]
		inWord, quoted = false, false
	}

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 == len(runes) {
				return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
			}
			i++
			buf = append(buf, runes[i])
			inWord, quoted = true, true
		case r == '\'' || r == '"':
			end := slices.Index(runes[i+1:], r)
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in command: %q", input)
			}
			buf = append(buf, runes[i+1:i+1+end]...)
			i += end + 1
			inWord, quoted = true, true
		case unicode.IsSpace(r):
			flush()
		default:
			buf = append(buf, r)
			inWord = true
		}
	}
	flush()
	return words, nil
}
