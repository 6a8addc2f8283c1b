package stream

import (
	"encoding/json"
	"strings"

	"github.com/MegaGrindStone/research-web-ui/internal/models"
)

// Kind discriminates the envelope variants extracted from protocol lines.
type Kind string

const (
	// KindResearchData marks a side-channel snapshot envelope.
	KindResearchData Kind = "research_data"
	// KindDelta marks an incremental fragment of assistant answer text.
	KindDelta Kind = "delta"
	// KindDone marks the end-of-stream sentinel.
	KindDone Kind = "done"
	// KindUnrecognized marks a syntactically valid payload with no known shape. Consumers
	// ignore it.
	KindUnrecognized Kind = "unrecognized"
)

// Envelope is one classified unit of protocol data extracted from a line. At most one of
// the payload fields is meaningful, selected by Kind.
type Envelope struct {
	Kind Kind

	// Delta holds the answer fragment when Kind is KindDelta.
	Delta string

	// Data holds the snapshot when Kind is KindResearchData.
	Data models.ResearchData
}

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	researchDataType = "research_data"
)

// envelopeBody is the union of the payload shapes the research service emits. A single
// probe struct keeps classification to one json.Unmarshal per line.
type envelopeBody struct {
	Type     string                  `json:"type"`
	Internal []models.InternalRecord `json:"internal"`
	Business []models.BusinessRecord `json:"business"`
	External []models.SourceRecord   `json:"external"`
	Choices  []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type parseResult int

const (
	parseOK parseResult = iota
	// parseSkip drops the line, it carries no data prefix.
	parseSkip
	// parseDefer re-queues the line, its body looks cut mid-payload.
	parseDefer
)

func parseLine(line string) (Envelope, parseResult) {
	body, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return Envelope{}, parseSkip
	}

	if strings.TrimSpace(body) == doneSentinel {
		return Envelope{Kind: KindDone}, parseOK
	}

	var eb envelopeBody
	if err := json.Unmarshal([]byte(body), &eb); err != nil {
		return Envelope{}, parseDefer
	}

	if eb.Type == researchDataType {
		data := models.ResearchData{
			Internal: eb.Internal,
			Business: eb.Business,
			External: eb.External,
		}
		if data.Internal == nil {
			data.Internal = []models.InternalRecord{}
		}
		if data.Business == nil {
			data.Business = []models.BusinessRecord{}
		}
		if data.External == nil {
			data.External = []models.SourceRecord{}
		}
		return Envelope{Kind: KindResearchData, Data: data}, parseOK
	}

	if len(eb.Choices) > 0 && eb.Choices[0].Delta.Content != "" {
		return Envelope{Kind: KindDelta, Delta: eb.Choices[0].Delta.Content}, parseOK
	}

	return Envelope{Kind: KindUnrecognized}, parseOK
}
