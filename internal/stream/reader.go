package stream

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"
)

const readChunkSize = 4096

// Fragments reads r incrementally and yields decoded text fragments. A read boundary that
// falls inside a multi-byte UTF-8 sequence does not corrupt output: the partial sequence is
// carried into the next fragment, so every yielded fragment holds only complete runes.
// Read failures other than EOF are yielded as errors and end the iteration.
func Fragments(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		buf := make([]byte, readChunkSize)
		var carry []byte
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := append(carry, buf[:n]...)
				complete, rest := splitRuneBoundary(chunk)
				carry = append([]byte(nil), rest...)
				if len(complete) > 0 {
					if !yield(string(complete), nil) {
						return
					}
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					if len(carry) > 0 {
						// Whatever is left can no longer complete, hand it over as is.
						yield(string(carry), nil)
					}
					return
				}
				yield("", fmt.Errorf("error reading stream: %w", err))
				return
			}
		}
	}
}

// splitRuneBoundary cuts p before a trailing incomplete UTF-8 sequence. It returns the
// prefix holding only complete runes and the opening bytes of the unfinished rune, which
// span at most utf8.UTFMax-1 bytes.
func splitRuneBoundary(p []byte) (complete, rest []byte) {
	for i := len(p) - 1; i >= 0 && i > len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if !utf8.FullRune(p[i:]) {
			return p[:i], p[i:]
		}
		break
	}
	return p, nil
}
