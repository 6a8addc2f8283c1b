package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/research-web-ui/internal/conversation"
	"github.com/MegaGrindStone/research-web-ui/internal/models"
	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

// SSE event types for real-time updates.
var (
	conversationsSSEType = sse.Type("conversations")
	messagesSSEType      = sse.Type("messages")
	sourcesSSEType       = sse.Type("sources")
)

// answerFailureNotice is appended to the transcript when the backend stream fails mid-turn.
const answerFailureNotice = "Something went wrong while answering. Please try again."

// HandleChats processes research interactions through HTTP POST requests, managing both new
// conversation creation and turn handling. It accepts the user's question through form data, opens
// a turn on the conversation state, and initiates asynchronous processing for the streamed answer
// and, for new conversations, title generation.
//
// The handler expects a "message" form field and optional "conversation_id", "mode", and "tool"
// fields. If no conversation_id is provided, it creates a new conversation. Answer and sources
// updates are streamed to the browser through Server-Sent Events (SSE); the immediate response is
// the re-rendered chatbox.
//
// The function returns appropriate HTTP error responses for invalid methods, missing required
// fields, or internal processing errors. A second turn started while one is still streaming is
// rejected with a conflict status.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")
	if msg == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	var err error

	conversationID := r.FormValue("conversation_id")
	// We track if this is a new conversation to decide whether a title still has to be generated
	isNewConversation := false
	if conversationID == "" {
		conversationID, err = m.newConversation()
		if err != nil {
			m.logger.Error("Failed to create new conversation", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		isNewConversation = true
	}

	state, err := m.registry.Get(r.Context(), conversationID)
	if err != nil {
		m.logger.Error("Failed to load conversation",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	userMsg, err := state.StartTurn(msg)
	if err != nil {
		if errors.Is(err, conversation.ErrTurnPending) {
			m.logger.Warn("Turn rejected", slog.String("conversationID", conversationID))
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := m.store.AddMessage(r.Context(), conversationID, userMsg); err != nil {
		m.logger.Error("Failed to add user message",
			slog.String("message", fmt.Sprintf("%+v", userMsg)),
			slog.String(errLoggerKey, err.Error()))
		state.Cancel()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// The new turn replaces any previous snapshot, so clear the persisted one and the panel with it.
	if err := m.store.SaveResearchData(r.Context(), conversationID, models.ResearchData{}); err != nil {
		m.logger.Warn("Failed to clear research data",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
	}
	m.publishSources(conversationID, state)

	mode := r.FormValue("mode")
	if mode == "" && len(m.modes) > 0 {
		mode = m.modes[0]
	}

	// Start async processes for the streamed answer and title generation
	go m.research(conversationID, state, mode, r.FormValue("tool"))

	if isNewConversation {
		go m.generateConversationTitle(conversationID, msg)
	}

	transcript, err := newTranscriptView(state)
	if err != nil {
		m.logger.Error("Failed to render transcript", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		CurrentConversationID: conversationID,
		Transcript:            transcript,
		Modes:                 m.modes,
		Tools:                 m.tools,
	}
	if err := m.templates.ExecuteTemplate(w, "chatbox", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) newConversation() (string, error) {
	newConversation := models.Conversation{
		ID: uuid.New().String(),
	}
	newID, err := m.store.AddConversation(context.Background(), newConversation)
	if err != nil {
		return "", fmt.Errorf("failed to add conversation: %w", err)
	}
	newConversation.ID = newID

	divs, err := m.conversationDivs(newConversation.ID)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation divs: %w", err)
	}

	msg := sse.Message{
		Type: conversationsSSEType,
	}
	msg.AppendData(divs)

	if err := m.sseSrv.Publish(&msg, conversationsSSETopic); err != nil {
		return "", fmt.Errorf("failed to publish conversations: %w", err)
	}

	return newConversation.ID, nil
}

// research drives one turn: it streams envelopes from the backend, applies each to the
// conversation state, persists the resulting changes, and pushes the re-rendered transcript and
// sources panel to subscribed clients.
func (m Main) research(conversationID string, state *conversation.State, mode, tool string) {
	ctx := context.Background()

	for env, err := range m.researcher.Research(ctx, state.Messages(), mode, tool) {
		if err != nil {
			m.logger.Error("Error from researcher", slog.String(errLoggerKey, err.Error()))
			m.failTurn(ctx, conversationID, state)
			return
		}

		change, msg := state.Apply(env)
		switch change {
		case conversation.ChangeMessageCreated:
			if err := m.store.AddMessage(ctx, conversationID, msg); err != nil {
				m.logger.Error("Failed to add message",
					slog.String("message", fmt.Sprintf("%+v", msg)),
					slog.String(errLoggerKey, err.Error()))
				state.Cancel()
				return
			}
			m.publishTranscript(conversationID, state)
		case conversation.ChangeMessageUpdated:
			if err := m.store.UpdateMessage(ctx, conversationID, msg); err != nil {
				m.logger.Error("Failed to update message",
					slog.String("message", fmt.Sprintf("%+v", msg)),
					slog.String(errLoggerKey, err.Error()))
				state.Cancel()
				return
			}
			m.publishTranscript(conversationID, state)
		case conversation.ChangeResearchReplaced:
			if err := m.store.SaveResearchData(ctx, conversationID, state.Research()); err != nil {
				m.logger.Warn("Failed to save research data",
					slog.String("conversationID", conversationID),
					slog.String(errLoggerKey, err.Error()))
			}
			m.publishSources(conversationID, state)
		case conversation.ChangeTurnEnded:
			// The closing render resolves citation markers against the completed snapshot.
			m.publishTranscript(conversationID, state)
		case conversation.ChangeNone:
		}
	}

	// A stream that ends without the done sentinel surfaces as an error above, so reaching here
	// with the turn still open means the request was canceled.
	if state.Pending() {
		state.Cancel()
	}
}

// failTurn closes the turn with the user-facing failure notice and persists whatever message the
// notice landed in.
func (m Main) failTurn(ctx context.Context, conversationID string, state *conversation.State) {
	change, msg := state.Fail(answerFailureNotice)
	switch change {
	case conversation.ChangeMessageCreated:
		if err := m.store.AddMessage(ctx, conversationID, msg); err != nil {
			m.logger.Error("Failed to add failure notice",
				slog.String(errLoggerKey, err.Error()))
		}
	case conversation.ChangeMessageUpdated:
		if err := m.store.UpdateMessage(ctx, conversationID, msg); err != nil {
			m.logger.Error("Failed to update failure notice",
				slog.String(errLoggerKey, err.Error()))
		}
	default:
	}

	m.publishTranscript(conversationID, state)
}

func (m Main) publishTranscript(conversationID string, state *conversation.State) {
	view, err := newTranscriptView(state)
	if err != nil {
		m.logger.Error("Failed to render transcript",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "messages", view); err != nil {
		m.logger.Error("Failed to execute messages template",
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: messagesSSEType,
	}
	msg.AppendData(sb.String())

	if err := m.sseSrv.Publish(&msg, conversationTopic(conversationID)); err != nil {
		m.logger.Error("Failed to publish messages",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) publishSources(conversationID string, state *conversation.State) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "sources_panel", newSourcesView(state.Research())); err != nil {
		m.logger.Error("Failed to execute sources_panel template",
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: sourcesSSEType,
	}
	msg.AppendData(sb.String())

	if err := m.sseSrv.Publish(&msg, conversationTopic(conversationID)); err != nil {
		m.logger.Error("Failed to publish sources",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) generateConversationTitle(conversationID string, message string) {
	title, err := m.titleGenerator.GenerateTitle(context.Background(), message)
	if err != nil {
		m.logger.Error("Error generating conversation title",
			slog.String("message", message),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	updatedConversation := models.Conversation{
		ID:    conversationID,
		Title: title,
	}
	if err := m.store.UpdateConversation(context.Background(), updatedConversation); err != nil {
		m.logger.Error("Failed to update conversation title",
			slog.String(errLoggerKey, err.Error()))
		return
	}

	divs, err := m.conversationDivs(conversationID)
	if err != nil {
		m.logger.Error("Failed to generate conversation divs",
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: conversationsSSEType,
	}
	msg.AppendData(divs)
	if err := m.sseSrv.Publish(&msg, conversationsSSETopic); err != nil {
		m.logger.Error("Failed to publish conversations",
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) conversationDivs(activeID string) (string, error) {
	conversations, err := m.store.Conversations(context.Background())
	if err != nil {
		return "", fmt.Errorf("failed to get conversations: %w", err)
	}

	var sb strings.Builder
	for _, c := range conversations {
		err := m.templates.ExecuteTemplate(&sb, "conversation_title", conversationView{
			ID:     c.ID,
			Title:  c.Title,
			Active: c.ID == activeID,
		})
		if err != nil {
			return "", fmt.Errorf("failed to execute conversation_title template: %w", err)
		}
	}
	return sb.String(), nil
}
