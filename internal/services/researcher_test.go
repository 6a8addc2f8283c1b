package services_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/MegaGrindStone/research-web-ui/internal/models"
	"github.com/MegaGrindStone/research-web-ui/internal/services"
	"github.com/MegaGrindStone/research-web-ui/internal/stream"
)

const answerStream = `data: {"type":"research_data","internal":[],"business":[],"external":[{"id":1,"title":"A paper","authors":["A. Author"],"year":2020,"url":"https://example.com/paper"}]}
data: {"choices":[{"delta":{"content":"Hello "}}]}
data: {"choices":[{"delta":{"content":"world [1]"}}]}
data: [DONE]
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collectResearch(t *testing.T, researcher services.Researcher, mode, tool string) []stream.Envelope {
	t.Helper()

	msgs := []models.Message{
		{ID: "m1", Role: models.RoleUser, Content: "what is attention?"},
	}

	var envs []stream.Envelope
	for env, err := range researcher.Research(context.Background(), msgs, mode, tool) {
		if err != nil {
			t.Fatalf("Research() error = %v", err)
		}
		envs = append(envs, env)
	}
	return envs
}

func TestResearcherResearch(t *testing.T) {
	type capturedRequest struct {
		path string
		auth string
		body []byte
	}
	reqCh := make(chan capturedRequest, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqCh <- capturedRequest{
			path: r.URL.Path,
			auth: r.Header.Get("Authorization"),
			body: body,
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer does not support flushing")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		// Write in small pieces so the client sees the answer arrive fragmented.
		payload := []byte(answerStream)
		for len(payload) > 0 {
			n := 7
			if n > len(payload) {
				n = len(payload)
			}
			if _, err := w.Write(payload[:n]); err != nil {
				return
			}
			flusher.Flush()
			payload = payload[n:]
		}
	}))
	defer srv.Close()

	researcher := services.NewResearcher(srv.URL, "test-key", testLogger())

	envs := collectResearch(t, researcher, "all", "web_search")

	want := []stream.Envelope{
		{
			Kind: stream.KindResearchData,
			Data: models.ResearchData{
				Internal: []models.InternalRecord{},
				Business: []models.BusinessRecord{},
				External: []models.SourceRecord{
					{
						ID:      1,
						Title:   "A paper",
						Authors: []string{"A. Author"},
						Year:    2020,
						URL:     "https://example.com/paper",
					},
				},
			},
		},
		{Kind: stream.KindDelta, Delta: "Hello "},
		{Kind: stream.KindDelta, Delta: "world [1]"},
		{Kind: stream.KindDone},
	}
	if !reflect.DeepEqual(envs, want) {
		t.Errorf("envelopes = %+v, want %+v", envs, want)
	}

	req := <-reqCh
	if req.path != "/api/research" {
		t.Errorf("request path = %q, want %q", req.path, "/api/research")
	}
	if req.auth != "Bearer test-key" {
		t.Errorf("authorization header = %q, want %q", req.auth, "Bearer test-key")
	}

	var reqBody struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Mode   string `json:"mode"`
		Tool   string `json:"tool"`
		Stream bool   `json:"stream"`
	}
	if err := json.Unmarshal(req.body, &reqBody); err != nil {
		t.Fatalf("failed to unmarshal request body: %v", err)
	}
	if len(reqBody.Messages) != 1 || reqBody.Messages[0].Content != "what is attention?" {
		t.Errorf("request messages = %+v, want the transcript", reqBody.Messages)
	}
	if reqBody.Mode != "all" {
		t.Errorf("request mode = %q, want %q", reqBody.Mode, "all")
	}
	if reqBody.Tool != "web_search" {
		t.Errorf("request tool = %q, want %q", reqBody.Tool, "web_search")
	}
	if !reqBody.Stream {
		t.Error("request stream flag is false")
	}

	// Without a tool the field stays off the wire entirely.
	collectResearch(t, researcher, "all", "")
	req = <-reqCh
	if strings.Contains(string(req.body), `"tool"`) {
		t.Errorf("request body = %s, want no tool field", req.body)
	}
}

func TestResearcherResearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	researcher := services.NewResearcher(srv.URL, "", testLogger())

	var gotErr error
	for _, err := range researcher.Research(context.Background(), nil, "all", "") {
		if err != nil {
			gotErr = err
			break
		}
	}
	if gotErr == nil {
		t.Fatal("expected an error, got none")
	}
	if !strings.Contains(gotErr.Error(), "unexpected status code: 500") {
		t.Errorf("error = %v, want the status code reported", gotErr)
	}
}

func TestResearcherResearchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "should not be reached", http.StatusInternalServerError)
	}))
	defer srv.Close()

	researcher := services.NewResearcher(srv.URL, "", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for env, err := range researcher.Research(ctx, nil, "all", "") {
		t.Errorf("unexpected yield after cancellation: env = %+v, err = %v", env, err)
	}
}
