package stream

import (
	"bytes"
	"log/slog"
	"strings"
)

// Decoder splits decoded text fragments into protocol lines and classifies each line into
// an Envelope. It owns all buffering between fragments: a trailing partial line stays
// buffered until the next Feed, and a line whose payload fails to decode is re-queued in
// front of the buffer so the next fragment can complete it.
type Decoder struct {
	buf []byte

	// deferred is set while the front of buf holds a re-queued line waiting for more data.
	// The decoder has no further state, it is either clean or deferred.
	deferred bool

	logger *slog.Logger
}

// NewDecoder creates a Decoder that reports dropped data on logger.
func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{
		logger: logger.With(slog.String("module", "stream")),
	}
}

// Feed appends one decoded fragment to the buffer and extracts complete newline-terminated
// lines from it, stripping one trailing carriage return per line and calling emit for every
// envelope the lines classify into. Blank lines, comment lines, and lines without the data
// prefix are dropped without emitting. Feed returns false when emit does, which stops
// extraction with the remaining input still buffered.
func (d *Decoder) Feed(fragment string, emit func(Envelope) bool) bool {
	d.buf = append(d.buf, fragment...)
	d.deferred = false

	for !d.deferred {
		nl := bytes.IndexByte(d.buf, '\n')
		if nl < 0 {
			break
		}
		line := strings.TrimSuffix(string(d.buf[:nl]), "\r")
		d.buf = d.buf[nl+1:]

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		env, res := parseLine(line)
		switch res {
		case parseSkip:
		case parseDefer:
			// The payload may continue in the next fragment, so the raw line goes back in
			// front of whatever is still buffered and extraction pauses until more data
			// arrives.
			d.buf = append([]byte(line), d.buf...)
			d.deferred = true
			d.logger.Debug("Deferred partial line", slog.String("line", line))
		case parseOK:
			if !emit(env) {
				return false
			}
		}
	}
	return true
}

// Flush treats any non-blank text left in the buffer as one final line and classifies it. A
// line that still fails to decode is dropped with a warning. Flushing an empty or
// whitespace-only buffer is a no-op. The decoder is reset either way.
func (d *Decoder) Flush(emit func(Envelope) bool) bool {
	rest := string(d.buf)
	d.buf = nil
	d.deferred = false

	if strings.TrimSpace(rest) == "" {
		return true
	}

	line := strings.TrimSuffix(strings.TrimSuffix(rest, "\n"), "\r")
	if strings.HasPrefix(line, ":") {
		return true
	}

	env, res := parseLine(line)
	switch res {
	case parseDefer:
		d.logger.Warn("Dropping undecodable trailing line", slog.String("line", line))
		return true
	case parseSkip:
		return true
	default:
		return emit(env)
	}
}
