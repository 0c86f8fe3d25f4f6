package jsonstream

import "encoding/json"

// Limits constrains framer memory use.
type Limits struct {
	// MaxValueBytes bounds one buffered value. Zero disables the bound.
	MaxValueBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxValueBytes: 8 * 1024 * 1024,
	}
}

// Event is one framing outcome: a complete value or a framing error.
type Event struct {
	Value json.RawMessage
	Err   error
}

type framerMode uint8

const (
	modeIdle framerMode = iota
	modeValue
	// modeSkip discards bytes until the next '{' or '['.
	modeSkip
	// modeDrain discards the remainder of a broken value.
	modeDrain
)

// Framer extracts consecutive top-level JSON values from a byte stream.
type Framer struct {
	limits Limits
	scan   scanner
	mode   framerMode
	drain  drain

	// pending holds the buffered prefix of the one value in progress.
	pending  []byte
	size     int
	oversize bool

	offset int64
	start  int64
}

func NewFramer(limits Limits) *Framer {
	return &Framer{limits: limits}
}

// Buffered returns the number of bytes held for the value in progress.
func (f *Framer) Buffered() int {
	return len(f.pending)
}

// Offset returns the number of stream bytes consumed so far.
func (f *Framer) Offset() int64 {
	return f.offset
}

// Feed consumes one chunk and returns every value and framing error it
// completed, in stream order. The chunk is not retained.
func (f *Framer) Feed(chunk []byte) []Event {
	var events []Event
	valueStart := 0

	for i := 0; i < len(chunk); {
		c := chunk[i]
		switch f.mode {
		case modeIdle:
			if isSpace(c) {
				i++
				continue
			}
			if !canBeginValue(c) {
				events = append(events, Event{Err: newFramingError(
					f.offset+int64(i),
					chunk[i:i+1],
					syntaxError(c, "looking for beginning of value"),
				)})
				f.mode = modeSkip
				i++
				continue
			}
			f.begin(f.offset + int64(i))
			valueStart = i
		case modeSkip:
			if c != '{' && c != '[' {
				i++
				continue
			}
			f.begin(f.offset + int64(i))
			valueStart = i
		case modeDrain:
			if f.drain.step(c) {
				f.mode = modeIdle
			}
			i++
			continue
		}

		switch f.scan.step(c) {
		case stepContinue:
			events = f.grow(events, chunk, valueStart, i+1)
			i++
		case stepComplete:
			events = f.grow(events, chunk, valueStart, i+1)
			if !f.oversize {
				events = append(events, Event{Value: f.take(chunk[valueStart : i+1])})
			}
			f.finish()
			i++
		case stepCompleteBefore:
			if !f.oversize {
				events = append(events, Event{Value: f.take(chunk[valueStart:i])})
			}
			f.finish()
		case stepError:
			if !f.oversize {
				events = append(events, Event{Err: newFramingError(
					f.start,
					f.snippet(chunk[valueStart:i+1]),
					f.scan.err,
				)})
			}
			// The offending byte is rescanned in the recovery mode.
			f.recover(c)
		}
	}

	if f.mode == modeValue && !f.oversize {
		f.pending = append(f.pending, chunk[valueStart:]...)
	}
	f.offset += int64(len(chunk))
	return events
}

// Flush ends the stream. A pending top-level number is emitted; any other
// partial value is reported as truncated.
func (f *Framer) Flush() []Event {
	if f.mode != modeValue {
		f.mode = modeIdle
		f.drain = drain{}
		return nil
	}
	var events []Event
	switch {
	case f.oversize:
	case f.scan.canFlush():
		events = append(events, Event{Value: f.take(nil)})
	default:
		events = append(events, Event{Err: newFramingError(f.start, f.snippet(nil), ErrTruncated)})
	}
	f.finish()
	return events
}

func (f *Framer) begin(at int64) {
	f.mode = modeValue
	f.start = at
	f.size = 0
	f.oversize = false
	f.scan.reset()
}

func (f *Framer) finish() {
	f.mode = modeIdle
	f.drain = drain{}
	f.pending = f.pending[:0]
	f.size = 0
	f.oversize = false
	f.scan.reset()
}

// recover ends a value the scanner rejected at byte c. Containers the value
// left open are drained so nothing nested inside it is framed on its own. An
// offending '{' or '[' outside a string opens the next value instead.
func (f *Framer) recover(c byte) {
	d := drain{
		depth:    len(f.scan.stack),
		inString: f.scan.inString(),
		escaped:  f.scan.state == stateInStringEsc,
	}
	f.finish()
	switch {
	case !d.inString && (c == '{' || c == '['):
		f.mode = modeSkip
	case d.inString || d.depth > 0:
		f.drain = d
		f.mode = modeDrain
	default:
		f.mode = modeSkip
	}
}

// grow accounts for one consumed byte and enforces the value bound.
func (f *Framer) grow(events []Event, chunk []byte, valueStart, end int) []Event {
	f.size++
	if f.oversize || f.limits.MaxValueBytes <= 0 || f.size <= f.limits.MaxValueBytes {
		return events
	}
	f.oversize = true
	events = append(events, Event{Err: newFramingError(
		f.start,
		f.snippet(chunk[valueStart:end]),
		ErrValueTooLarge,
	)})
	f.pending = f.pending[:0]
	return events
}

// take returns the buffered prefix joined with tail as an owned value.
func (f *Framer) take(tail []byte) json.RawMessage {
	if len(f.pending) == 0 {
		out := make([]byte, len(tail))
		copy(out, tail)
		return out
	}
	out := append(f.pending, tail...)
	f.pending = nil
	return out
}

func (f *Framer) snippet(tail []byte) []byte {
	if len(f.pending) >= snippetLen {
		return f.pending[:snippetLen]
	}
	if room := snippetLen - len(f.pending); len(tail) > room {
		tail = tail[:room]
	}
	out := make([]byte, 0, snippetLen)
	out = append(out, f.pending...)
	return append(out, tail...)
}
