package stream_test

import (
	"reflect"
	"testing"

	"github.com/MegaGrindStone/research-web-ui/internal/models"
	"github.com/MegaGrindStone/research-web-ui/internal/stream"
)

func TestDecoderFeed(t *testing.T) {
	emptyData := models.ResearchData{
		Internal: []models.InternalRecord{},
		Business: []models.BusinessRecord{},
		External: []models.SourceRecord{},
	}

	tests := []struct {
		name      string
		fragments []string
		want      []stream.Envelope
	}{
		{
			name:      "single delta line",
			fragments: []string{"data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n"},
			want:      []stream.Envelope{{Kind: stream.KindDelta, Delta: "Hi"}},
		},
		{
			name:      "line split across fragments",
			fragments: []string{"data: {\"choices\":[{\"delta\":{\"con", "tent\":\"Hi\"}}]}\n"},
			want:      []stream.Envelope{{Kind: stream.KindDelta, Delta: "Hi"}},
		},
		{
			name:      "carriage return stripped",
			fragments: []string{"data: [DONE]\r\n"},
			want:      []stream.Envelope{{Kind: stream.KindDone}},
		},
		{
			name:      "done sentinel with padded body",
			fragments: []string{"data:  [DONE] \n"},
			want:      []stream.Envelope{{Kind: stream.KindDone}},
		},
		{
			name:      "comments and blank lines dropped",
			fragments: []string{": keep-alive\n\ndata: [DONE]\n"},
			want:      []stream.Envelope{{Kind: stream.KindDone}},
		},
		{
			name:      "line without data prefix dropped",
			fragments: []string{"event: message\ndata: [DONE]\n"},
			want:      []stream.Envelope{{Kind: stream.KindDone}},
		},
		{
			name:      "empty delta is unrecognized",
			fragments: []string{"data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n"},
			want:      []stream.Envelope{{Kind: stream.KindUnrecognized}},
		},
		{
			name:      "unknown payload shape is unrecognized",
			fragments: []string{"data: {\"object\":\"ping\"}\n"},
			want:      []stream.Envelope{{Kind: stream.KindUnrecognized}},
		},
		{
			name:      "research data with missing arrays gets empty slices",
			fragments: []string{"data: {\"type\":\"research_data\"}\n"},
			want:      []stream.Envelope{{Kind: stream.KindResearchData, Data: emptyData}},
		},
		{
			name: "payload cut by an embedded newline recovers",
			fragments: []string{
				"data: {\"type\":\"research_data\",\n",
				"\"external\":[]}\n",
			},
			want: []stream.Envelope{{Kind: stream.KindResearchData, Data: emptyData}},
		},
		{
			name:      "deferred line that never completes",
			fragments: []string{"data: {\"choices\":[{\"delta\"\n"},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := stream.NewDecoder(testLogger())

			var got []stream.Envelope
			collect := func(env stream.Envelope) bool {
				got = append(got, env)
				return true
			}

			for _, frag := range tt.fragments {
				if !dec.Feed(frag, collect) {
					t.Fatal("Feed() stopped unexpectedly")
				}
			}
			dec.Flush(collect)

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("envelopes = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecoderFlush(t *testing.T) {
	tests := []struct {
		name   string
		buffer string
		want   []stream.Envelope
	}{
		{
			name:   "parses final unterminated line",
			buffer: "data: [DONE]",
			want:   []stream.Envelope{{Kind: stream.KindDone}},
		},
		{
			name:   "whitespace only buffer is a no-op",
			buffer: " \r",
			want:   nil,
		},
		{
			name:   "undecodable remainder dropped",
			buffer: "data: {\"broken",
			want:   nil,
		},
		{
			name:   "comment remainder dropped",
			buffer: ": ping",
			want:   nil,
		},
		{
			name:   "remainder without data prefix dropped",
			buffer: "event: done",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := stream.NewDecoder(testLogger())

			var got []stream.Envelope
			collect := func(env stream.Envelope) bool {
				got = append(got, env)
				return true
			}

			dec.Feed(tt.buffer, collect)
			if len(got) != 0 {
				t.Fatalf("Feed() emitted %+v before flush", got)
			}
			dec.Flush(collect)

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("envelopes = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecoderFlushIdempotent(t *testing.T) {
	dec := stream.NewDecoder(testLogger())

	emitted := 0
	collect := func(stream.Envelope) bool {
		emitted++
		return true
	}

	dec.Flush(collect)
	if emitted != 0 {
		t.Fatalf("flushing a fresh decoder emitted %d envelopes", emitted)
	}

	dec.Feed("data: [DONE]", collect)
	dec.Flush(collect)
	if emitted != 1 {
		t.Fatalf("first flush emitted %d envelopes, want 1", emitted)
	}

	dec.Flush(collect)
	if emitted != 1 {
		t.Errorf("second flush emitted %d more envelopes, want 0", emitted-1)
	}
}
