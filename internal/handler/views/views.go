// Package views renders the HTML fragments returned to HTMX requests.
package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/coursemate/internal/i18n"
	"github.com/pavelanni/coursemate/internal/model"
)

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err == nil {
		_, w.err = io.WriteString(w.w, s)
	}
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) list(ctx context.Context, titleID string, items []string) {
	if len(items) == 0 {
		return
	}
	w.raw(`<h4>`)
	w.text(appI18n.T(ctx, titleID))
	w.raw(`</h4><ul>`)
	for _, it := range items {
		w.raw(`<li>`)
		w.text(it)
		w.raw(`</li>`)
	}
	w.raw(`</ul>`)
}

// ChatMessage renders one answered question with its sources.
func ChatMessage(m model.ChatMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(fmt.Sprintf(`<div class="chat-message" id="chat-%d">`, m.ID))
		w.raw(`<p class="chat-question">`)
		w.text(m.Question)
		w.raw(`</p><div class="chat-answer">`)
		for _, para := range strings.Split(m.Answer, "\n\n") {
			if strings.TrimSpace(para) == "" {
				continue
			}
			w.raw(`<p>`)
			w.text(para)
			w.raw(`</p>`)
		}
		w.raw(`</div>`)
		if len(m.References) > 0 {
			w.raw(`<div class="chat-sources"><span>`)
			w.text(appI18n.T(ctx, "Sources"))
			w.raw(`:</span><ul>`)
			for _, ref := range m.References {
				w.raw(fmt.Sprintf(`<li data-material-id="%d">`, ref.MaterialID))
				w.text(ref.Title)
				w.raw(`</li>`)
			}
			w.raw(`</ul></div>`)
		}
		w.raw(`</div>`)
		return w.err
	})
}

// AnalysisCard renders a submission's score and, when present, its analysis.
func AnalysisCard(sub model.Submission) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(fmt.Sprintf(`<section class="analysis" id="submission-%d">`, sub.ID))
		w.raw(`<p class="score">`)
		w.text(appI18n.Td(ctx, "ScoreN", map[string]any{"Score": fmt.Sprintf("%.0f", sub.Score)}))
		w.raw(`</p>`)

		an := sub.Analysis
		if an == nil {
			w.raw(`<p class="analysis-pending">`)
			w.text(appI18n.T(ctx, "AnalysisPending"))
			w.raw(`</p></section>`)
			return w.err
		}

		w.raw(`<h3>`)
		w.text(appI18n.T(ctx, "AnalysisTitle"))
		w.raw(`</h3><p>`)
		w.text(an.PerformanceSummary)
		w.raw(`</p>`)
		w.list(ctx, "TopicsMastered", an.TopicsMastered)
		w.list(ctx, "TopicsToReview", an.TopicsToReview)
		w.list(ctx, "Strengths", an.DetailedAnalysis.Strengths)
		w.list(ctx, "Weaknesses", an.DetailedAnalysis.Weaknesses)
		w.list(ctx, "Recommendations", an.Recommendations)
		w.list(ctx, "StudyStrategies", an.StudyStrategies)
		w.list(ctx, "NextSteps", an.NextSteps)
		w.raw(`</section>`)
		return w.err
	})
}

// ErrorBanner renders a user-facing error message.
func ErrorBanner(msg string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<div class="error" role="alert">`)
		w.text(msg)
		w.raw(`</div>`)
		return w.err
	})
}
