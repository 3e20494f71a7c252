package codec

import (
	"strings"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
)

type element struct {
	text   string
	quoted bool
}

type tagPair struct {
	key      string
	elements []element
}

// value converts the scanned elements into a typed value. Ids keep the raw
// text, replicate separators included, and never become integers.
func (p tagPair) value(key string, f *format.Format) attrs.Value {
	if key == format.KeyID {
		parts := make([]string, len(p.elements))
		for i, e := range p.elements {
			parts[i] = e.text
		}
		return attrs.String(strings.Join(parts, f.RepSep))
	}
	if len(p.elements) == 1 {
		return scalar(p.elements[0])
	}
	items := make([]attrs.Value, len(p.elements))
	for i, e := range p.elements {
		items[i] = scalar(e)
	}
	return attrs.List(items...)
}

func scalar(e element) attrs.Value {
	if e.quoted {
		return attrs.String(e.text)
	}
	return attrs.Parse(e.text)
}

// tagScanner tokenizes key=value; pairs. Quoted keys and values may contain
// any separator; a doubled quote inside quotes is a literal quote.
type tagScanner struct {
	s   string
	pos int
	f   *format.Format
}

func scanTags(s string, f *format.Format) ([]tagPair, error) {
	sc := &tagScanner{s: s, f: f}
	var pairs []tagPair
	for {
		sc.skipSpace()
		if sc.done() {
			return pairs, nil
		}
		p, err := sc.pair()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
}

func (sc *tagScanner) done() bool { return sc.pos >= len(sc.s) }

func (sc *tagScanner) at(tok string) bool {
	return tok != "" && strings.HasPrefix(sc.s[sc.pos:], tok)
}

func (sc *tagScanner) skipSpace() {
	for !sc.done() {
		switch {
		case sc.at(sc.f.KwSep):
			sc.pos += len(sc.f.KwSep)
		case sc.s[sc.pos] == ' ' || sc.s[sc.pos] == '\t':
			sc.pos++
		default:
			return
		}
	}
}

func (sc *tagScanner) pair() (tagPair, error) {
	key, err := sc.key()
	if err != nil {
		return tagPair{}, err
	}
	var elems []element
	for {
		e, err := sc.element()
		if err != nil {
			return tagPair{}, err
		}
		elems = append(elems, e)
		switch {
		case sc.at(sc.f.Trail):
			sc.pos += len(sc.f.Trail)
			return tagPair{key: key, elements: elems}, nil
		case sc.at(sc.f.RepSep):
			sc.pos += len(sc.f.RepSep)
		default:
			return tagPair{}, errors.NewFormatError("unterminated value for %q: missing %q", key, sc.f.Trail)
		}
	}
}

func (sc *tagScanner) key() (string, error) {
	if !sc.done() && sc.s[sc.pos] == '"' {
		k, err := sc.quoted()
		if err != nil {
			return "", err
		}
		if !sc.at(sc.f.Sep) {
			return "", errors.NewFormatError("expected %q after key %q", sc.f.Sep, k)
		}
		sc.pos += len(sc.f.Sep)
		return k, nil
	}
	start := sc.pos
	for !sc.done() {
		if sc.at(sc.f.Sep) {
			k := strings.TrimSpace(sc.s[start:sc.pos])
			sc.pos += len(sc.f.Sep)
			if k == "" {
				return "", errors.NewFormatError("empty key at offset %d", start)
			}
			return k, nil
		}
		if sc.at(sc.f.Trail) {
			break
		}
		sc.pos++
	}
	return "", errors.NewFormatError("malformed tag %q: missing %q", sc.s[start:sc.pos], sc.f.Sep)
}

// element reads one value element up to the next replicate separator or
// trail, leaving the terminator in place.
func (sc *tagScanner) element() (element, error) {
	for !sc.done() && sc.s[sc.pos] == ' ' {
		sc.pos++
	}
	if !sc.done() && sc.s[sc.pos] == '"' {
		text, err := sc.quoted()
		if err != nil {
			return element{}, err
		}
		for !sc.done() && sc.s[sc.pos] == ' ' && !sc.at(sc.f.Trail) && !sc.at(sc.f.RepSep) {
			sc.pos++
		}
		return element{text: text, quoted: true}, nil
	}
	start := sc.pos
	for !sc.done() && !sc.at(sc.f.Trail) && !sc.at(sc.f.RepSep) {
		sc.pos++
	}
	return element{text: strings.TrimSpace(sc.s[start:sc.pos])}, nil
}

func (sc *tagScanner) quoted() (string, error) {
	start := sc.pos
	sc.pos++ // opening quote
	var b strings.Builder
	for !sc.done() {
		c := sc.s[sc.pos]
		if c == '"' {
			if sc.pos+1 < len(sc.s) && sc.s[sc.pos+1] == '"' {
				b.WriteByte('"')
				sc.pos += 2
				continue
			}
			sc.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		sc.pos++
	}
	return "", errors.NewFormatError("unterminated quote at offset %d", start)
}
