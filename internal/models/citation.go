package models

import "strconv"

// AnswerSegment is one piece of a resolved assistant answer. A segment is either plain text
// or a citation marker bound to a source record; concatenating the Text of all segments
// reproduces the input byte for byte.
type AnswerSegment struct {
	Text string

	// SourceID is the effective id of the referenced source record. It is zero for plain
	// text segments, including bracketed numbers that match no known record.
	SourceID int

	// Start and End are byte offsets of the segment within the original text, End exclusive.
	Start int
	End   int
}

// ResolveCitations scans text once, left to right, for bracketed numeric citation markers
// like [3] and binds each to a record in sources. A marker whose number matches no record
// becomes its own plain text segment instead of a binding, so unresolvable markers render
// inert rather than dropping or crashing. Text between markers is emitted unmodified.
func ResolveCitations(text string, sources []SourceRecord) []AnswerSegment {
	known := make(map[int]struct{}, len(sources))
	for i, rec := range sources {
		known[EffectiveSourceID(rec, i)] = struct{}{}
	}

	var segs []AnswerSegment
	plain := 0
	i := 0
	for i < len(text) {
		if text[i] != '[' {
			i++
			continue
		}
		j := i + 1
		for j < len(text) && text[j] >= '0' && text[j] <= '9' {
			j++
		}
		if j == i+1 {
			i++
			continue
		}
		if j == len(text) || text[j] != ']' {
			// Digits can't open another marker, so the scan may jump over them.
			i = j
			continue
		}
		id, err := strconv.Atoi(text[i+1 : j])
		if err != nil {
			i = j + 1
			continue
		}

		if plain < i {
			segs = append(segs, AnswerSegment{Text: text[plain:i], Start: plain, End: i})
		}
		seg := AnswerSegment{Text: text[i : j+1], Start: i, End: j + 1}
		if _, ok := known[id]; ok {
			seg.SourceID = id
		}
		segs = append(segs, seg)
		i = j + 1
		plain = i
	}
	if plain < len(text) {
		segs = append(segs, AnswerSegment{Text: text[plain:], Start: plain, End: len(text)})
	}
	return segs
}
