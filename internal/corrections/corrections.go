// Package corrections rewrites recognized speech with user-maintained fixes for
// words the recognizer keeps getting wrong.
//
// A corrections file holds one rule per line. Blank lines and lines starting with
// '#' are skipped.
//
//	wear => where
//	s/\bgonna\b/going to/g
//
// Literal rules match whole words, ignoring case. Substitution rules use any
// non-alphanumeric delimiter and accept the flags g, i, m and s.
package corrections

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
	all         bool
}

func (r rule) apply(text string) string {
	if r.all {
		return r.re.ReplaceAllString(text, r.replacement)
	}
	loc := r.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return text
	}
	var out []byte
	out = r.re.ExpandString(out, r.replacement, text, loc)
	return text[:loc[0]] + string(out) + text[loc[1]:]
}

// Set is an ordered list of rules. The zero value corrects nothing.
type Set struct {
	rules []rule
}

// Load reads rules from path. An empty path or a missing file yields an empty set.
func Load(path string) (*Set, error) {
	if strings.TrimSpace(path) == "" {
		return &Set{}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Set{}, nil
		}
		return nil, fmt.Errorf("open corrections %q: %w", path, err)
	}
	defer file.Close()

	set, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("corrections %q: %w", path, err)
	}
	return set, nil
}

// Parse reads rules from r.
func Parse(r io.Reader) (*Set, error) {
	set := &Set{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var (
			parsed rule
			err    error
		)
		switch {
		case isSubstitution(line):
			parsed, err = parseSubstitution(line)
		case strings.Contains(line, "=>"):
			parsed, err = parseLiteral(line)
		default:
			err = errors.New("expected \"from => to\" or s/pattern/replacement/")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		set.rules = append(set.rules, parsed)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// Len reports the number of rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Apply runs every rule once, in file order.
func (s *Set) Apply(text string) string {
	if s == nil {
		return text
	}
	for _, r := range s.rules {
		text = r.apply(text)
	}
	return text
}

func parseLiteral(line string) (rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return rule{}, errors.New("literal rule needs a phrase to replace")
	}

	words := strings.Fields(from)
	for i, word := range words {
		words[i] = regexp.QuoteMeta(word)
	}
	re, err := regexp.Compile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
	if err != nil {
		return rule{}, err
	}
	// Literal replacements never expand $ references.
	return rule{re: re, replacement: strings.ReplaceAll(to, "$", "$$"), all: true}, nil
}

func parseSubstitution(line string) (rule, error) {
	delim := line[1]
	pattern, rest, err := splitDelimited(line[2:], delim)
	if err != nil {
		return rule{}, fmt.Errorf("pattern: %w", err)
	}
	replacement, rest, err := splitDelimited(rest, delim)
	if err != nil {
		return rule{}, fmt.Errorf("replacement: %w", err)
	}

	all := false
	prefix := ""
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			all = true
		case 'i', 'm', 's':
			if !strings.ContainsRune(prefix, flag) {
				prefix += string(flag)
			}
		default:
			return rule{}, fmt.Errorf("unknown flag %q", flag)
		}
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return rule{}, err
	}
	return rule{re: re, replacement: replacement, all: all}, nil
}

// splitDelimited returns the text before the first unescaped delim. An escaped
// delimiter is unescaped; any other escape is kept for the regexp parser.
func splitDelimited(s string, delim byte) (string, string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			if s[i] != delim {
				b.WriteByte('\\')
			}
			b.WriteByte(s[i])
		case c == delim:
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
		}
	}
	return "", "", errors.New("unterminated expression")
}

func isSubstitution(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	c := line[1]
	alnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	return !alnum && c != ' ' && c != '\t'
}
