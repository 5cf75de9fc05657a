package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var errEOF = errors.New("unexpected end of data")

// lexer reads PDF objects from a byte slice, position based.
type lexer struct {
	data []byte
	pos  int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool {
	return !isSpace(c) && !isDelimiter(c)
}

// skipSpace skips whitespace and comments. Position outside of data is
// treated as end of data.
func (l *lexer) skipSpace() {
	if l.pos < 0 || l.pos > len(l.data) {
		l.pos = len(l.data)
	}
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

// token reads run of regular characters.
func (l *lexer) token() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// hasPrefix reports whether data at the current position (after whitespace)
// starts with the keyword.
func (l *lexer) hasPrefix(keyword string) bool {
	l.skipSpace()
	return bytes.HasPrefix(l.data[l.pos:], []byte(keyword))
}

// readObject reads a direct object. References ("n g R") are recognized.
func (l *lexer) readObject() (Object, error) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return nil, errEOF
	}
	switch c := l.data[l.pos]; {
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.readDict()
		}
		return l.readHexString()
	case c == '[':
		return l.readArray()
	case c == '(':
		return l.readLiteralString()
	case c == '/':
		return l.readName(), nil
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.readNumberOrRef()
	}

	tok := l.token()
	switch tok {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return Null{}, nil
	case "":
		return nil, fmt.Errorf("unexpected character %q at offset %d", l.data[l.pos], l.pos)
	}
	return nil, fmt.Errorf("unexpected keyword %q at offset %d", tok, l.pos)
}

func (l *lexer) readDict() (Dict, error) {
	l.pos += 2
	d := make(Dict)
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, errEOF
		}
		if l.data[l.pos] == '>' {
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
				l.pos += 2
				return d, nil
			}
			return nil, fmt.Errorf("malformed dictionary end at offset %d", l.pos)
		}
		if l.data[l.pos] != '/' {
			return nil, fmt.Errorf("dictionary key is not a name at offset %d", l.pos)
		}
		key := l.readName()
		val, err := l.readObject()
		if err != nil {
			return nil, fmt.Errorf("value of /%s: %w", key, err)
		}
		if _, null := val.(Null); null {
			// null valued entries are equivalent to absent ones
			continue
		}
		d[key] = val
	}
}

func (l *lexer) readArray() (Array, error) {
	l.pos++
	arr := Array{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, errEOF
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		val, err := l.readObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
}

func (l *lexer) readName() Name {
	l.pos++ // '/'
	var buf []byte
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		c := l.data[l.pos]
		if c == '#' && l.pos+2 < len(l.data) {
			if v, err := strconv.ParseUint(string(l.data[l.pos+1:l.pos+3]), 16, 8); err == nil {
				buf = append(buf, byte(v))
				l.pos += 3
				continue
			}
		}
		buf = append(buf, c)
		l.pos++
	}
	return Name(buf)
}

func (l *lexer) readNumber() (Object, error) {
	start := l.pos
	if l.data[l.pos] == '+' || l.data[l.pos] == '-' {
		l.pos++
	}
	isReal := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '.' {
			isReal = true
		} else if c < '0' || c > '9' {
			break
		}
		l.pos++
	}
	s := string(l.data[start:l.pos])
	if !isReal {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Integer(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if s == "-" || s == "+" || s == "." {
			// some producers write lone signs, treat as zero
			return Integer(0), nil
		}
		return nil, fmt.Errorf("bad number %q at offset %d", s, start)
	}
	return Real(f), nil
}

// readNumberOrRef looks ahead for "gen R" after an integer.
func (l *lexer) readNumberOrRef() (Object, error) {
	num, err := l.readNumber()
	if err != nil {
		return nil, err
	}
	n, ok := num.(Integer)
	if !ok || n < 0 {
		return num, nil
	}
	save := l.pos
	l.skipSpace()
	if l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '9' {
		gen, err := l.readNumber()
		if g, ok := gen.(Integer); err == nil && ok {
			l.skipSpace()
			if l.pos < len(l.data) && l.data[l.pos] == 'R' &&
				(l.pos+1 == len(l.data) || !isRegular(l.data[l.pos+1])) {
				l.pos++
				return Reference{Num: int(n), Gen: int(g)}, nil
			}
		}
	}
	l.pos = save
	return num, nil
}

func (l *lexer) readHexString() (String, error) {
	l.pos++
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if c := l.data[l.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	if l.pos >= len(l.data) {
		return nil, errEOF
	}
	l.pos++
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	out := make(String, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad hex string at offset %d", l.pos)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func (l *lexer) readLiteralString() (String, error) {
	l.pos++
	out := String{}
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out, nil
			}
		case '\\':
			if l.pos >= len(l.data) {
				return nil, errEOF
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			continue
		}
		out = append(out, c)
	}
	return nil, errEOF
}
