package stream

import (
	"errors"
	"io"
	"iter"
	"log/slog"
)

// ErrTruncated reports a stream that ended before the done sentinel was observed.
var ErrTruncated = errors.New("stream ended before done sentinel")

// Envelopes composes the full pipeline over r: incremental reading, line splitting, and
// envelope classification. Iteration stops right after the done envelope is yielded, any
// bytes past it are left unread. When r ends without a done envelope the remaining buffer
// is flushed defensively and ErrTruncated is yielded.
func Envelopes(r io.Reader, logger *slog.Logger) iter.Seq2[Envelope, error] {
	return func(yield func(Envelope, error) bool) {
		dec := NewDecoder(logger)

		var done, stopped bool
		emit := func(env Envelope) bool {
			if !yield(env, nil) {
				stopped = true
				return false
			}
			if env.Kind == KindDone {
				done = true
				return false
			}
			return true
		}

		for fragment, err := range Fragments(r) {
			if err != nil {
				yield(Envelope{}, err)
				return
			}
			if !dec.Feed(fragment, emit) {
				return
			}
		}

		if done || stopped {
			return
		}
		if !dec.Flush(emit) {
			return
		}
		if !done {
			yield(Envelope{}, ErrTruncated)
		}
	}
}
