package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/pavelanni/coursemate/internal/llm"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "AppTitle", "Coursemate"},
		{"en", "ErrLLMRateLimited", "Rate limit exceeded. Please try again in a few minutes."},
		{"ru", "AppTitle", "Курсмейт"},
		{"ru", "ErrLLMUnavailable", "Сервис ИИ временно недоступен. Попробуйте позже."},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	if got := Tp(ctx, "PointsEarned", 1); got != "1 point earned" {
		t.Errorf("Tp(PointsEarned, 1) = %q", got)
	}
	if got := Tp(ctx, "PointsEarned", 5); got != "5 points earned" {
		t.Errorf("Tp(PointsEarned, 5) = %q", got)
	}

	ctx = initLang(t, "ru")
	if got := Tp(ctx, "QuestionsGenerated", 5); got != "Создано 5 вопросов" {
		t.Errorf("Tp(QuestionsGenerated, 5) ru = %q", got)
	}
	if got := Tp(ctx, "QuestionsGenerated", 2); got != "Создано 2 вопроса" {
		t.Errorf("Tp(QuestionsGenerated, 2) ru = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	if got := Td(ctx, "ScoreN", map[string]any{"Score": 75}); got != "Score: 75%" {
		t.Errorf("Td(ScoreN) = %q, want 'Score: 75%%'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q", got)
	}
}

func TestEveryLLMKindHasMessages(t *testing.T) {
	initLang(t, "en")
	kinds := []llm.Kind{llm.KindUnknown, llm.KindRateLimited, llm.KindInvalidRequest, llm.KindAuthenticationFailed, llm.KindServiceUnavailable}
	for _, lang := range Languages() {
		ctx := WithLocalizer(context.Background(), NewLocalizer(lang))
		for _, k := range kinds {
			if got := T(ctx, k.MessageID()); got == k.MessageID() {
				t.Errorf("%s: no translation for %s", lang, k.MessageID())
			}
		}
	}
	if langs := Languages(); !slices.Contains(langs, "en") || !slices.Contains(langs, "ru") {
		t.Errorf("Languages() = %v", langs)
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(T(r.Context(), "AppTitle")))
	}))

	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{"default", "/", "", "Coursemate"},
		{"accept-language", "/", "ru-RU,ru;q=0.9,en;q=0.8", "Курсмейт"},
		{"unsupported falls back", "/", "de-DE", "Coursemate"},
		{"query wins", "/?lang=en", "ru", "Coursemate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}
