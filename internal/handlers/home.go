package handlers

import (
	"log/slog"
	"net/http"
)

// HandleHome renders the main page with the conversation list, the active conversation's
// transcript, and its sources panel. The active conversation is selected with the optional
// conversation_id query parameter.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	conversations, err := m.store.Conversations(r.Context())
	if err != nil {
		m.logger.Error("Failed to get conversations", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	currentConversationID := r.URL.Query().Get("conversation_id")

	conversationViews := make([]conversationView, len(conversations))
	for i, c := range conversations {
		conversationViews[i] = conversationView{
			ID:     c.ID,
			Title:  c.Title,
			Active: c.ID == currentConversationID,
		}
	}

	data := homePageData{
		Conversations:         conversationViews,
		CurrentConversationID: currentConversationID,
		Modes:                 m.modes,
		Tools:                 m.tools,
	}

	if currentConversationID != "" {
		state, err := m.registry.Get(r.Context(), currentConversationID)
		if err != nil {
			m.logger.Error("Failed to load conversation",
				slog.String("conversationID", currentConversationID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		transcript, err := newTranscriptView(state)
		if err != nil {
			m.logger.Error("Failed to render transcript", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Transcript = transcript
		data.Sources = newSourcesView(state.Research())
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
