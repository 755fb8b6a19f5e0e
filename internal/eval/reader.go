// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package eval

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type reader struct {
	src   []rune
	pos   int
	depth int
}

// Read reads exactly one form from src. Input after the form, other than
// whitespace and comments, is an error.
func Read(src string) (Value, error) {
	r := &reader{src: []rune(src)}
	r.skipSpace()
	if r.eof() {
		return nil, fmt.Errorf("parse error: empty expression")
	}
	form, err := r.read()
	if err != nil {
		return nil, err
	}
	r.skipSpace()
	if !r.eof() {
		return nil, fmt.Errorf("parse error: unexpected trailing input at offset %d", r.pos)
	}
	return form, nil
}

func (r *reader) eof() bool {
	return r.pos >= len(r.src)
}

func (r *reader) peek() rune {
	return r.src[r.pos]
}

func (r *reader) skipSpace() {
	for !r.eof() {
		c := r.peek()
		switch {
		case c == ';':
			for !r.eof() && r.peek() != '\n' {
				r.pos++
			}
		case unicode.IsSpace(c) || c == ',':
			r.pos++
		default:
			return
		}
	}
}

func (r *reader) read() (Value, error) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > MaxDepth {
		return nil, fmt.Errorf("parse error: forms nested deeper than %d at offset %d", MaxDepth, r.pos)
	}
	r.skipSpace()
	if r.eof() {
		return nil, fmt.Errorf("parse error: unexpected end of input")
	}
	switch c := r.peek(); c {
	case '(':
		r.pos++
		items, err := r.readSeq(')')
		if err != nil {
			return nil, err
		}
		return List(items), nil
	case '[':
		r.pos++
		items, err := r.readSeq(']')
		if err != nil {
			return nil, err
		}
		return Vector(items), nil
	case ')', ']':
		return nil, fmt.Errorf("parse error: unexpected '%c' at offset %d", c, r.pos)
	case '\'':
		r.pos++
		quoted, err := r.read()
		if err != nil {
			return nil, err
		}
		return List{Symbol("quote"), quoted}, nil
	case '"':
		return r.readString()
	default:
		return r.readAtom()
	}
}

func (r *reader) readSeq(closer rune) ([]Value, error) {
	items := []Value{}
	for {
		r.skipSpace()
		if r.eof() {
			return nil, fmt.Errorf("parse error: missing closing '%c'", closer)
		}
		if r.peek() == closer {
			r.pos++
			return items, nil
		}
		item, err := r.read()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func (r *reader) readString() (Value, error) {
	start := r.pos
	r.pos++
	var b strings.Builder
	for !r.eof() {
		c := r.peek()
		r.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if r.eof() {
				return nil, fmt.Errorf("parse error: unterminated string at offset %d", start)
			}
			esc := r.peek()
			r.pos++
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '"', '\\':
				b.WriteRune(esc)
			default:
				return nil, fmt.Errorf("parse error: unsupported escape \\%c", esc)
			}
		default:
			b.WriteRune(c)
		}
	}
	return nil, fmt.Errorf("parse error: unterminated string at offset %d", start)
}

func isDelimiter(c rune) bool {
	return unicode.IsSpace(c) || strings.ContainsRune("()[]\";,'", c)
}

func (r *reader) readAtom() (Value, error) {
	start := r.pos
	for !r.eof() && !isDelimiter(r.peek()) {
		r.pos++
	}
	token := string(r.src[start:r.pos])
	switch token {
	case "nil":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if strings.HasPrefix(token, ":") {
		if len(token) == 1 {
			return nil, fmt.Errorf("parse error: empty keyword at offset %d", start)
		}
		return Keyword(token[1:]), nil
	}
	if looksNumeric(token) {
		if i, err := strconv.ParseInt(token, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("parse error: invalid number %q", token)
	}
	return Symbol(token), nil
}

func looksNumeric(token string) bool {
	s := token
	if len(s) > 1 && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
