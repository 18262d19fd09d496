package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/coursemate/internal/i18n"
	"github.com/pavelanni/coursemate/internal/model"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestChatMessageEscapes(t *testing.T) {
	html := render(t, ChatMessage(model.ChatMessage{
		ID:         7,
		Question:   "<script>alert(1)</script>",
		Answer:     "First paragraph.\n\nSee Week 1 & Week 2.",
		References: []model.Reference{{MaterialID: 3, Title: "Week <1>"}},
	}))

	if strings.Contains(html, "<script>") {
		t.Error("question should be escaped")
	}
	for _, want := range []string{`id="chat-7"`, "<p>First paragraph.</p>", "Week 1 &amp; Week 2.", `data-material-id="3"`, "Week &lt;1&gt;", "Sources"} {
		if !strings.Contains(html, want) {
			t.Errorf("missing %q in %s", want, html)
		}
	}
}

func TestAnalysisCard(t *testing.T) {
	pending := render(t, AnalysisCard(model.Submission{ID: 1, Score: 50}))
	if !strings.Contains(pending, "Score: 50%") || !strings.Contains(pending, "not available yet") {
		t.Errorf("pending card = %s", pending)
	}

	full := render(t, AnalysisCard(model.Submission{ID: 2, Score: 100, Analysis: &model.SubmissionAnalysis{
		PerformanceSummary: "Excellent",
		TopicsMastered:     []string{"channels"},
		NextSteps:          []string{"Try select"},
	}}))
	for _, want := range []string{"Performance Analysis", "Excellent", "Topics mastered", "<li>channels</li>", "Next steps"} {
		if !strings.Contains(full, want) {
			t.Errorf("missing %q in %s", want, full)
		}
	}
	if strings.Contains(full, "Topics to review") {
		t.Error("empty lists should be omitted")
	}
}

func TestErrorBanner(t *testing.T) {
	html := render(t, ErrorBanner(`rate "limited"`))
	if !strings.Contains(html, `role="alert"`) || !strings.Contains(html, "rate &#34;limited&#34;") {
		t.Errorf("banner = %s", html)
	}
}
