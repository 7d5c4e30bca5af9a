package localestore

import (
	"fmt"
	"strings"
)

// parsePHPArray reads a Laravel-style locale file: a PHP script whose
// return statement yields a (possibly nested) associative array of string
// keys to string values. Only the array literal is interpreted; arbitrary
// PHP expressions as values are skipped rather than evaluated.
func parsePHPArray(content string) (map[string]any, error) {
	idx := strings.Index(content, "return")
	if idx < 0 {
		return nil, fmt.Errorf("parsing locale PHP: no return statement")
	}
	p := &phpParser{src: content, pos: idx + len("return")}
	p.skipTrivia()
	tree, err := p.parseArray()
	if err != nil {
		return nil, fmt.Errorf("parsing locale PHP: %w", err)
	}
	return tree, nil
}

type phpParser struct {
	src string
	pos int
}

func (p *phpParser) eof() bool { return p.pos >= len(p.src) }

func (p *phpParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

// skipTrivia advances past whitespace and comments.
func (p *phpParser) skipTrivia() {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			p.skipUntil("\n")
		case c == '#':
			p.skipUntil("\n")
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*':
			p.pos += 2
			p.skipUntil("*/")
		default:
			return
		}
	}
}

func (p *phpParser) skipUntil(marker string) {
	if i := strings.Index(p.src[p.pos:], marker); i >= 0 {
		p.pos += i + len(marker)
	} else {
		p.pos = len(p.src)
	}
}

// parseArray parses "[...]" or "array(...)" into a tree.
func (p *phpParser) parseArray() (map[string]any, error) {
	var closer byte
	switch {
	case p.peek() == '[':
		p.pos++
		closer = ']'
	case strings.HasPrefix(p.src[p.pos:], "array"):
		p.pos += len("array")
		p.skipTrivia()
		if p.peek() != '(' {
			return nil, fmt.Errorf("expected ( after array at offset %d", p.pos)
		}
		p.pos++
		closer = ')'
	default:
		return nil, fmt.Errorf("expected array literal at offset %d", p.pos)
	}

	tree := make(map[string]any)
	for {
		p.skipTrivia()
		if p.eof() {
			return nil, fmt.Errorf("unterminated array")
		}
		if p.peek() == closer {
			p.pos++
			return tree, nil
		}
		if p.peek() == ',' {
			p.pos++
			continue
		}

		key, err := p.parseString()
		if err != nil {
			// Non-string key (integer, constant): skip the whole entry.
			p.skipEntry(closer)
			continue
		}

		p.skipTrivia()
		if !strings.HasPrefix(p.src[p.pos:], "=>") {
			// List-style entry without a key; nothing to store.
			p.skipEntry(closer)
			continue
		}
		p.pos += 2
		p.skipTrivia()

		switch {
		case p.peek() == '\'' || p.peek() == '"':
			val, err := p.parseString()
			if err != nil {
				return nil, err
			}
			tree[key] = val
		case p.peek() == '[' || strings.HasPrefix(p.src[p.pos:], "array"):
			sub, err := p.parseArray()
			if err != nil {
				return nil, err
			}
			tree[key] = sub
		default:
			// Number, bool, constant, function call: not a string leaf.
			p.skipEntry(closer)
		}
	}
}

// parseString reads a single- or double-quoted PHP string literal.
func (p *phpParser) parseString() (string, error) {
	quote := p.peek()
	if quote != '\'' && quote != '"' {
		return "", fmt.Errorf("expected string at offset %d", p.pos)
	}
	p.pos++

	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		if c == quote {
			p.pos++
			return b.String(), nil
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			esc := p.src[p.pos+1]
			p.pos += 2
			switch {
			case esc == quote || esc == '\\':
				b.WriteByte(esc)
			case quote == '"' && esc == 'n':
				b.WriteByte('\n')
			case quote == '"' && esc == 't':
				b.WriteByte('\t')
			default:
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("unterminated string")
}

// skipEntry advances past the current entry up to the next comma or the
// array closer, respecting nested strings and brackets.
func (p *phpParser) skipEntry(closer byte) {
	depth := 0
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '\'' || c == '"':
			_, _ = p.parseString()
			continue
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			if depth == 0 {
				return
			}
			depth--
		case c == ',' && depth == 0:
			return
		}
		p.pos++
	}
}
