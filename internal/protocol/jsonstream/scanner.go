package jsonstream

// scanner is an incremental JSON syntax checker. It consumes one byte at a
// time and reports when a top-level value ends. It keeps no bytes itself.
type scanner struct {
	state   scanState
	stack   []container
	literal string
	err     error
}

type scanState uint8

const (
	stateBeginValue scanState = iota
	stateBeginValueOrEmpty
	stateBeginStringOrEmpty
	stateBeginString
	stateEndValue
	stateInString
	stateInStringEsc
	stateInStringEscU
	stateInStringEscU1
	stateInStringEscU12
	stateInStringEscU123
	stateNeg
	state1
	state0
	stateDot
	stateDot0
	stateE
	stateESign
	stateE0
	stateLiteral
)

type container uint8

const (
	parseObjectKey container = iota
	parseObjectValue
	parseArrayValue
)

type stepResult uint8

const (
	stepContinue stepResult = iota
	// stepComplete: the top-level value ended with this byte.
	stepComplete
	// stepCompleteBefore: the top-level value ended before this byte, which
	// was not consumed.
	stepCompleteBefore
	stepError
)

func (s *scanner) reset() {
	s.state = stateBeginValue
	s.stack = s.stack[:0]
	s.literal = ""
	s.err = nil
}

// canFlush reports whether end of input would complete the current value.
// Only a top-level number is still open at that point.
func (s *scanner) canFlush() bool {
	if len(s.stack) != 0 {
		return false
	}
	switch s.state {
	case state0, state1, stateDot0, stateE0:
		return true
	}
	return false
}

func (s *scanner) step(c byte) stepResult {
	switch s.state {
	case stateBeginValueOrEmpty:
		if isSpace(c) {
			return stepContinue
		}
		if c == ']' {
			return s.endValue(c)
		}
		return s.beginValue(c)

	case stateBeginValue:
		if isSpace(c) {
			return stepContinue
		}
		return s.beginValue(c)

	case stateBeginStringOrEmpty:
		if isSpace(c) {
			return stepContinue
		}
		if c == '}' {
			s.stack[len(s.stack)-1] = parseObjectValue
			return s.endValue(c)
		}
		fallthrough

	case stateBeginString:
		if isSpace(c) {
			return stepContinue
		}
		if c == '"' {
			s.state = stateInString
			return stepContinue
		}
		return s.fail(c, "looking for beginning of object key string")

	case stateEndValue:
		return s.endValue(c)

	case stateInString:
		switch {
		case c == '"':
			return s.valueDone()
		case c == '\\':
			s.state = stateInStringEsc
		case c < 0x20:
			return s.fail(c, "in string literal")
		}
		return stepContinue

	case stateInStringEsc:
		switch c {
		case 'b', 'f', 'n', 'r', 't', '\\', '/', '"':
			s.state = stateInString
			return stepContinue
		case 'u':
			s.state = stateInStringEscU
			return stepContinue
		}
		return s.fail(c, "in string escape code")

	case stateInStringEscU, stateInStringEscU1, stateInStringEscU12, stateInStringEscU123:
		if !isHex(c) {
			return s.fail(c, "in \\u hexadecimal character escape")
		}
		if s.state == stateInStringEscU123 {
			s.state = stateInString
		} else {
			s.state++
		}
		return stepContinue

	case stateNeg:
		switch {
		case c == '0':
			s.state = state0
			return stepContinue
		case '1' <= c && c <= '9':
			s.state = state1
			return stepContinue
		}
		return s.fail(c, "in numeric literal")

	case state1:
		if isDigit(c) {
			return stepContinue
		}
		fallthrough

	case state0:
		switch c {
		case '.':
			s.state = stateDot
			return stepContinue
		case 'e', 'E':
			s.state = stateE
			return stepContinue
		}
		return s.endValue(c)

	case stateDot:
		if isDigit(c) {
			s.state = stateDot0
			return stepContinue
		}
		return s.fail(c, "after decimal point in numeric literal")

	case stateDot0:
		if isDigit(c) {
			return stepContinue
		}
		if c == 'e' || c == 'E' {
			s.state = stateE
			return stepContinue
		}
		return s.endValue(c)

	case stateE:
		if c == '+' || c == '-' {
			s.state = stateESign
			return stepContinue
		}
		fallthrough

	case stateESign:
		if isDigit(c) {
			s.state = stateE0
			return stepContinue
		}
		return s.fail(c, "in exponent of numeric literal")

	case stateE0:
		if isDigit(c) {
			return stepContinue
		}
		return s.endValue(c)

	case stateLiteral:
		if c != s.literal[0] {
			return s.fail(c, "in literal")
		}
		s.literal = s.literal[1:]
		if s.literal == "" {
			return s.valueDone()
		}
		return stepContinue
	}
	return s.fail(c, "in unknown scanner state")
}

func (s *scanner) beginValue(c byte) stepResult {
	switch c {
	case '{':
		s.stack = append(s.stack, parseObjectKey)
		s.state = stateBeginStringOrEmpty
	case '[':
		s.stack = append(s.stack, parseArrayValue)
		s.state = stateBeginValueOrEmpty
	case '"':
		s.state = stateInString
	case '-':
		s.state = stateNeg
	case '0':
		s.state = state0
	case 't':
		s.state, s.literal = stateLiteral, "rue"
	case 'f':
		s.state, s.literal = stateLiteral, "alse"
	case 'n':
		s.state, s.literal = stateLiteral, "ull"
	default:
		if '1' <= c && c <= '9' {
			s.state = state1
			return stepContinue
		}
		return s.fail(c, "looking for beginning of value")
	}
	return stepContinue
}

// valueDone is called when a value ended with the current byte.
func (s *scanner) valueDone() stepResult {
	if len(s.stack) == 0 {
		s.reset()
		return stepComplete
	}
	s.state = stateEndValue
	return stepContinue
}

// endValue is called with the first byte after a value.
func (s *scanner) endValue(c byte) stepResult {
	n := len(s.stack)
	if n == 0 {
		s.reset()
		return stepCompleteBefore
	}
	if isSpace(c) {
		s.state = stateEndValue
		return stepContinue
	}
	switch s.stack[n-1] {
	case parseObjectKey:
		if c == ':' {
			s.stack[n-1] = parseObjectValue
			s.state = stateBeginValue
			return stepContinue
		}
		return s.fail(c, "after object key")
	case parseObjectValue:
		if c == ',' {
			s.stack[n-1] = parseObjectKey
			s.state = stateBeginString
			return stepContinue
		}
		if c == '}' {
			s.stack = s.stack[:n-1]
			return s.valueDone()
		}
		return s.fail(c, "after object key:value pair")
	default:
		if c == ',' {
			s.state = stateBeginValue
			return stepContinue
		}
		if c == ']' {
			s.stack = s.stack[:n-1]
			return s.valueDone()
		}
		return s.fail(c, "after array element")
	}
}

func (s *scanner) inString() bool {
	return stateInString <= s.state && s.state <= stateInStringEscU123
}

func (s *scanner) fail(c byte, context string) stepResult {
	s.err = syntaxError(c, context)
	return stepError
}

// drain tracks container depth through the discarded remainder of a broken
// value. Brackets inside strings do not count.
type drain struct {
	depth    int
	inString bool
	escaped  bool
}

// step consumes one byte and reports whether the broken value has ended.
func (d *drain) step(c byte) bool {
	if d.inString {
		switch {
		case d.escaped:
			d.escaped = false
		case c == '\\':
			d.escaped = true
		case c == '"':
			d.inString = false
		}
	} else {
		switch c {
		case '"':
			d.inString = true
		case '{', '[':
			d.depth++
		case '}', ']':
			d.depth--
		}
	}
	return d.depth <= 0 && !d.inString
}

func canBeginValue(c byte) bool {
	switch c {
	case '{', '[', '"', '-', 't', 'f', 'n':
		return true
	}
	return isDigit(c)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
