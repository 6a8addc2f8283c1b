package models_test

import (
	"strings"
	"testing"

	"github.com/MegaGrindStone/research-web-ui/internal/models"
)

func TestRenderMarkdown(t *testing.T) {
	got, err := models.RenderMarkdown("some **bold** text")
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Errorf("RenderMarkdown() = %q, want bold markup", got)
	}
}

func TestRenderAnswer(t *testing.T) {
	sources := []models.SourceRecord{
		{ID: 1, Title: "A paper"},
	}

	got, err := models.RenderAnswer("Hello world [1] and [9]", sources)
	if err != nil {
		t.Fatalf("RenderAnswer() error = %v", err)
	}

	if !strings.Contains(got, `<a href="#source-1">[1]</a>`) {
		t.Errorf("RenderAnswer() = %q, want a link for the resolved marker", got)
	}
	if strings.Contains(got, "#source-9") {
		t.Errorf("RenderAnswer() = %q, want no link for the unresolved marker", got)
	}
	if !strings.Contains(got, "[9]") {
		t.Errorf("RenderAnswer() = %q, want the unresolved marker kept as text", got)
	}
}

func TestSourceAnchor(t *testing.T) {
	if got := models.SourceAnchor(3); got != "source-3" {
		t.Errorf("SourceAnchor(3) = %q, want %q", got, "source-3")
	}
}
