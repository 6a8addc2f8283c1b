package services_test

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/research-web-ui/internal/models"
	"github.com/MegaGrindStone/research-web-ui/internal/services"
)

func testStore(t *testing.T) services.BoltDB {
	t.Helper()

	store, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	return store
}

func TestBoltDBConversations(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := store.AddConversation(ctx, models.Conversation{
			ID:    fmt.Sprintf("c-%d", i),
			Title: fmt.Sprintf("Conversation %d", i),
		})
		if err != nil {
			t.Fatalf("AddConversation() error = %v", err)
		}
		if !strings.HasSuffix(id, fmt.Sprintf("-c-%d", i)) {
			t.Errorf("returned id = %q, want the original id as suffix", id)
		}
		ids = append(ids, id)
	}

	conversations, err := store.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(conversations) != 3 {
		t.Fatalf("conversation count = %d, want 3", len(conversations))
	}
	for i, conversation := range conversations {
		if want := ids[len(ids)-1-i]; conversation.ID != want {
			t.Errorf("conversations[%d].ID = %q, want %q (newest first)", i, conversation.ID, want)
		}
	}

	if err := store.UpdateConversation(ctx, models.Conversation{ID: ids[0], Title: "Renamed"}); err != nil {
		t.Fatalf("UpdateConversation() error = %v", err)
	}
	conversations, err = store.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if got := conversations[len(conversations)-1].Title; got != "Renamed" {
		t.Errorf("updated title = %q, want %q", got, "Renamed")
	}

	if err := store.UpdateConversation(ctx, models.Conversation{ID: "missing", Title: "Ghost"}); err != nil {
		t.Fatalf("UpdateConversation() with unknown id error = %v", err)
	}
	conversations, err = store.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(conversations) != 3 {
		t.Errorf("conversation count after ignored update = %d, want 3", len(conversations))
	}
}

func TestBoltDBMessages(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	convID, err := store.AddConversation(ctx, models.Conversation{ID: "c-1", Title: "Test"})
	if err != nil {
		t.Fatalf("AddConversation() error = %v", err)
	}

	// Enough messages that key ordering has to survive a second digit.
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		err := store.AddMessage(ctx, convID, models.Message{
			ID:        fmt.Sprintf("m-%d", i),
			Role:      models.RoleUser,
			Content:   fmt.Sprintf("content %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}

	messages, err := store.Messages(ctx, convID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 12 {
		t.Fatalf("message count = %d, want 12", len(messages))
	}
	for i, message := range messages {
		if want := fmt.Sprintf("m-%d", i); message.ID != want {
			t.Errorf("messages[%d].ID = %q, want %q", i, message.ID, want)
		}
		if want := fmt.Sprintf("content %d", i); message.Content != want {
			t.Errorf("messages[%d].Content = %q, want %q", i, message.Content, want)
		}
	}
	if !messages[3].Timestamp.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("messages[3].Timestamp = %v, want the stored timestamp", messages[3].Timestamp)
	}

	updated := messages[11]
	updated.Content = "content 11 extended"
	if err := store.UpdateMessage(ctx, convID, updated); err != nil {
		t.Fatalf("UpdateMessage() error = %v", err)
	}
	messages, err = store.Messages(ctx, convID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 12 {
		t.Fatalf("message count after update = %d, want 12", len(messages))
	}
	if messages[11].Content != "content 11 extended" {
		t.Errorf("messages[11].Content = %q, want the updated content", messages[11].Content)
	}

	if err := store.UpdateMessage(ctx, convID, models.Message{ID: "missing", Content: "ghost"}); err != nil {
		t.Fatalf("UpdateMessage() with unknown id error = %v", err)
	}
	messages, err = store.Messages(ctx, convID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 12 {
		t.Errorf("message count after ignored update = %d, want 12", len(messages))
	}
}

func TestBoltDBMessagesUnknownConversation(t *testing.T) {
	store := testStore(t)

	messages, err := store.Messages(context.Background(), "nowhere")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("message count = %d, want 0", len(messages))
	}
}

func TestBoltDBResearchData(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	data, err := store.ResearchData(ctx, "c-1")
	if err != nil {
		t.Fatalf("ResearchData() error = %v", err)
	}
	if !data.Empty() {
		t.Errorf("research data for unknown conversation = %+v, want empty", data)
	}

	first := models.ResearchData{
		External: []models.SourceRecord{
			{ID: 1, Title: "A paper", Authors: []string{"A. Author"}, Year: 2020},
		},
	}
	if err := store.SaveResearchData(ctx, "c-1", first); err != nil {
		t.Fatalf("SaveResearchData() error = %v", err)
	}
	data, err = store.ResearchData(ctx, "c-1")
	if err != nil {
		t.Fatalf("ResearchData() error = %v", err)
	}
	if !reflect.DeepEqual(data, first) {
		t.Errorf("research data = %+v, want %+v", data, first)
	}

	second := models.ResearchData{
		Internal: []models.InternalRecord{
			{ID: 7, Title: "Design notes", Author: "B. Author", Team: "Platform"},
		},
	}
	if err := store.SaveResearchData(ctx, "c-1", second); err != nil {
		t.Fatalf("SaveResearchData() error = %v", err)
	}
	data, err = store.ResearchData(ctx, "c-1")
	if err != nil {
		t.Fatalf("ResearchData() error = %v", err)
	}
	if !reflect.DeepEqual(data, second) {
		t.Errorf("research data after replace = %+v, want %+v", data, second)
	}
}
