package expression

import (
	"strings"
	"unicode"
)

// keywordRewrites maps the word-style spellings rule authors use onto CEL syntax
var keywordRewrites = map[string]string{
	"and":   "&&",
	"or":    "||",
	"True":  "true",
	"False": "false",
	"None":  "null",
}

var reservedWords = map[string]bool{
	"true": true, "false": true, "null": true, "in": true,
	"and": true, "or": true, "not": true, "True": true, "False": true, "None": true,
}

// normalized is a rule condition rewritten into CEL together with the free
// variables it references
type normalized struct {
	source    string
	variables []string
}

// normalize rewrites a rule condition into CEL. It accepts and/or/not and
// True/False/None next to CEL's own operators and literals, and reads integer
// literals outside index brackets as doubles so that they compare and combine
// with the numeric transaction variables. "not" binds looser than comparisons
// and tighter than and/or.
func normalize(expr string) normalized {
	n := &normalizer{src: []rune(expr)}
	n.run()
	return normalized{source: n.out.String(), variables: n.variables}
}

type normalizer struct {
	src []rune
	pos int
	out strings.Builder

	depth      int
	brackets   []bool // true when the open '[' indexes a value
	pendingNot []int  // depths holding an open "!(" from a rewritten not
	lastSig    rune   // last non-space rune written
	operand    bool   // output so far ends with a complete operand

	variables []string
	seen      map[string]bool
}

func (n *normalizer) run() {
	for n.pos < len(n.src) {
		r := n.src[n.pos]
		switch {
		case r == '"' || r == '\'':
			n.copyString(r)
		case isIdentStart(r):
			n.word()
		case unicode.IsDigit(r):
			n.number()
		case r == '(':
			n.emit(r)
			n.depth++
			n.pos++
		case r == '[':
			n.brackets = append(n.brackets, n.operand)
			n.emit(r)
			n.depth++
			n.pos++
		case r == ')' || r == ']':
			n.closeNots()
			if r == ']' && len(n.brackets) > 0 {
				n.brackets = n.brackets[:len(n.brackets)-1]
			}
			n.depth--
			n.emit(r)
			n.pos++
		case r == ',' || r == '?' || r == ':':
			n.closeNots()
			n.emit(r)
			n.pos++
		case (r == '&' || r == '|') && n.peek(1) == r:
			n.closeNots()
			n.emit(r)
			n.emit(r)
			n.pos += 2
		default:
			if unicode.IsSpace(r) {
				n.out.WriteRune(r)
			} else {
				n.emit(r)
			}
			n.pos++
		}
	}
	n.closeNots()
}

func (n *normalizer) emit(r rune) {
	n.out.WriteRune(r)
	n.lastSig = r
	n.operand = r == ')' || r == ']'
}

func (n *normalizer) emitText(s string) {
	n.out.WriteString(s)
	n.operand = false
	if s != "" {
		runes := []rune(s)
		n.lastSig = runes[len(runes)-1]
	}
}

func (n *normalizer) peek(offset int) rune {
	if n.pos+offset < len(n.src) {
		return n.src[n.pos+offset]
	}
	return 0
}

func (n *normalizer) copyString(quote rune) {
	start := n.pos
	n.pos++
	for n.pos < len(n.src) {
		r := n.src[n.pos]
		if r == '\\' {
			n.pos += 2
			continue
		}
		n.pos++
		if r == quote {
			break
		}
	}
	if n.pos > len(n.src) {
		n.pos = len(n.src)
	}
	n.emitText(string(n.src[start:n.pos]))
	n.lastSig = quote
	n.operand = true
}

func (n *normalizer) word() {
	start := n.pos
	for n.pos < len(n.src) && isIdentPart(n.src[n.pos]) {
		n.pos++
	}
	w := string(n.src[start:n.pos])
	member := n.lastSig == '.'

	switch {
	case !member && w == "not":
		n.pendingNot = append(n.pendingNot, n.depth)
		n.emitText("!(")
		return
	case !member && (w == "and" || w == "or"):
		n.closeNots()
		n.emitText(keywordRewrites[w])
		return
	case !member && keywordRewrites[w] != "":
		n.emitText(keywordRewrites[w])
		n.operand = true
		return
	}

	n.emitText(w)
	n.operand = w != "in"
	if !member && !reservedWords[w] && n.nextSignificant() != '(' {
		n.addVariable(w)
	}
}

func (n *normalizer) number() {
	start := n.pos
	integer := true
	if n.src[n.pos] == '0' && (n.peek(1) == 'x' || n.peek(1) == 'X') {
		integer = false
		n.pos += 2
		for n.pos < len(n.src) && isHexDigit(n.src[n.pos]) {
			n.pos++
		}
	} else {
		n.digits()
		if n.pos < len(n.src) && n.src[n.pos] == '.' && unicode.IsDigit(n.peek(1)) {
			integer = false
			n.pos++
			n.digits()
		}
		if n.pos < len(n.src) && (n.src[n.pos] == 'e' || n.src[n.pos] == 'E') {
			integer = false
			n.pos++
			if n.pos < len(n.src) && (n.src[n.pos] == '+' || n.src[n.pos] == '-') {
				n.pos++
			}
			n.digits()
		}
	}
	if n.pos < len(n.src) && (n.src[n.pos] == 'u' || n.src[n.pos] == 'U') {
		integer = false
		n.pos++
	}
	lit := string(n.src[start:n.pos])
	if integer && !n.inIndex() {
		lit += ".0"
	}
	n.emitText(lit)
	n.lastSig = '0'
	n.operand = true
}

func (n *normalizer) digits() {
	for n.pos < len(n.src) && unicode.IsDigit(n.src[n.pos]) {
		n.pos++
	}
}

func (n *normalizer) inIndex() bool {
	return len(n.brackets) > 0 && n.brackets[len(n.brackets)-1]
}

// closeNots closes every rewritten not opened at the current depth
func (n *normalizer) closeNots() {
	for len(n.pendingNot) > 0 && n.pendingNot[len(n.pendingNot)-1] == n.depth {
		n.pendingNot = n.pendingNot[:len(n.pendingNot)-1]
		n.out.WriteRune(')')
		n.lastSig = ')'
		n.operand = true
	}
}

func (n *normalizer) nextSignificant() rune {
	for i := n.pos; i < len(n.src); i++ {
		if !unicode.IsSpace(n.src[i]) {
			return n.src[i]
		}
	}
	return 0
}

func (n *normalizer) addVariable(name string) {
	if n.seen == nil {
		n.seen = make(map[string]bool)
	}
	if n.seen[name] {
		return
	}
	n.seen[name] = true
	n.variables = append(n.variables, name)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
