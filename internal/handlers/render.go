package handlers

import (
	"fmt"
	"html/template"
	"time"

	"github.com/MegaGrindStone/research-web-ui/internal/conversation"
	"github.com/MegaGrindStone/research-web-ui/internal/models"
)

type homePageData struct {
	Conversations         []conversationView
	CurrentConversationID string
	Transcript            transcriptView
	Sources               sourcesView

	Modes []string
	Tools []string
}

type conversationView struct {
	ID    string
	Title string

	Active bool
}

type messageView struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time

	Streaming bool
}

type transcriptView struct {
	ConversationID string
	Messages       []messageView

	Loading bool
}

type sourcesView struct {
	Internal []models.InternalRecord
	Business []models.BusinessRecord
	External []sourceView
}

type sourceView struct {
	models.SourceRecord

	Ref      int
	AnchorID string
}

// messageViews renders the transcript for display. Finished assistant messages get their citation
// markers resolved against the current research snapshot; the message still receiving deltas is
// rendered as plain markdown so half-arrived markers stay inert.
func messageViews(messages []models.Message, research models.ResearchData, liveID string) ([]messageView, error) {
	views := make([]messageView, len(messages))
	for i, msg := range messages {
		var content string
		var err error
		if msg.Role == models.RoleAssistant && msg.ID != liveID {
			content, err = models.RenderAnswer(msg.Content, research.External)
		} else {
			content, err = models.RenderMarkdown(msg.Content)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to render message: %w", err)
		}

		views[i] = messageView{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   template.HTML(content),
			Timestamp: msg.Timestamp,
			Streaming: msg.ID == liveID,
		}
	}
	return views, nil
}

func newTranscriptView(state *conversation.State) (transcriptView, error) {
	liveID := state.LiveMessageID()
	msgs, err := messageViews(state.Messages(), state.Research(), liveID)
	if err != nil {
		return transcriptView{}, err
	}

	return transcriptView{
		ConversationID: state.ID(),
		Messages:       msgs,
		Loading:        state.Pending() && liveID == "",
	}, nil
}

func newSourcesView(research models.ResearchData) sourcesView {
	external := make([]sourceView, len(research.External))
	for i, record := range research.External {
		id := models.EffectiveSourceID(record, i)
		external[i] = sourceView{
			SourceRecord: record,
			Ref:          id,
			AnchorID:     models.SourceAnchor(id),
		}
	}

	return sourcesView{
		Internal: research.Internal,
		Business: research.Business,
		External: external,
	}
}
