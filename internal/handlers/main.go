package handlers

import (
	"context"
	"fmt"
	"html/template"
	"iter"
	"log/slog"
	"net/http"
	"time"

	researchwebui "github.com/MegaGrindStone/research-web-ui"
	"github.com/MegaGrindStone/research-web-ui/internal/conversation"
	"github.com/MegaGrindStone/research-web-ui/internal/models"
	"github.com/MegaGrindStone/research-web-ui/internal/stream"
	"github.com/tmaxmax/go-sse"
)

// Researcher represents the research backend interface. It accepts a context, the conversation
// transcript, and the selected mode and tool, returning an iterator that yields decoded answer
// envelopes and potential errors.
type Researcher interface {
	Research(ctx context.Context, messages []models.Message, mode, tool string) iter.Seq2[stream.Envelope, error]
}

// TitleGenerator produces a short conversation title from the first user message.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, message string) (string, error)
}

// Store defines the interface for managing conversation persistence. It provides methods for
// creating, reading, and updating conversations, their messages, and their research snapshots.
type Store interface {
	Conversations(ctx context.Context) ([]models.Conversation, error)
	AddConversation(ctx context.Context, conversation models.Conversation) (string, error)
	UpdateConversation(ctx context.Context, conversation models.Conversation) error

	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	AddMessage(ctx context.Context, conversationID string, message models.Message) error
	UpdateMessage(ctx context.Context, conversationID string, message models.Message) error

	SaveResearchData(ctx context.Context, conversationID string, data models.ResearchData) error
	ResearchData(ctx context.Context, conversationID string) (models.ResearchData, error)
}

// Main handles the core functionality of the research UI, managing server-sent events, HTML
// templates, and interactions between the research backend and the Store.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	researcher     Researcher
	titleGenerator TitleGenerator
	store          Store
	registry       *conversation.Registry

	modes []string
	tools []string

	logger *slog.Logger
}

const conversationsSSETopic = "conversations"

const errLoggerKey = "err"

// NewMain creates a new Main instance with the provided researcher, title generator, and store
// implementations. It initializes the SSE server with default configurations and parses the
// required HTML templates from the embedded filesystem. The SSE server is configured to handle
// both default events and conversation-specific topics.
func NewMain(
	researcher Researcher,
	titleGenerator TitleGenerator,
	store Store,
	modes []string,
	tools []string,
	logger *slog.Logger,
) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		researchwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				// We start with default topics that all clients should subscribe to
				topics := []string{sse.DefaultTopic, conversationsSSETopic}

				// We create a conversation-specific topic if the client watches a particular conversation
				conversationID := s.Req.URL.Query().Get("conversation_id")
				if conversationID != "" {
					topics = append(topics, conversationTopic(conversationID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates:      tmpl,
		researcher:     researcher,
		titleGenerator: titleGenerator,
		store:          store,
		registry:       conversation.NewRegistry(store),
		modes:          modes,
		tools:          tools,
		logger:         logger.With(slog.String("module", "handlers")),
	}, nil
}

func conversationTopic(conversationID string) string {
	return fmt.Sprintf("conversation-%s", conversationID)
}

// HandleSSE serves the server-sent events endpoints used for live transcript, sources, and
// conversation list updates.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeStream")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
