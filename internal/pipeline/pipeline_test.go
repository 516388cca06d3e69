package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"newsbot/internal/catalog"
	"newsbot/internal/extract"
	"newsbot/internal/model"
)

type stubExtractor struct {
	text  string
	err   error
	rules extract.Rules
	url   string
}

func (s *stubExtractor) Extract(_ context.Context, pageURL string, rules extract.Rules) (string, error) {
	s.url = pageURL
	s.rules = rules
	return s.text, s.err
}

type stubSummarizer struct {
	summary string
	err     error
	input   string
}

func (s *stubSummarizer) Summarize(_ context.Context, text string) (string, error) {
	s.input = text
	return s.summary, s.err
}

func TestProcess(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.Static(catalog.Default())
	cand := model.Candidate{
		Title:     "Markets rally",
		Link:      "https://cnbc.com/markets",
		SourceKey: "cnbc",
		Category:  "business",
	}

	t.Run("success", func(t *testing.T) {
		ex := &stubExtractor{text: "long body"}
		sum := &stubSummarizer{summary: "short"}
		got := New(cat, ex, sum, log).Process(context.Background(), cand)

		want := &model.Article{Candidate: cand, Summary: "short"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("article mismatch (-want +got):\n%s", diff)
		}
		if ex.rules.Container != "div.ArticleBody-articleBody" {
			t.Errorf("container = %q", ex.rules.Container)
		}
		if len(ex.rules.StripClasses) == 0 || len(ex.rules.StripTags) == 0 {
			t.Errorf("strip rules not passed: %+v", ex.rules)
		}
		if sum.input != "long body" {
			t.Errorf("summarizer input = %q", sum.input)
		}
	})

	t.Run("extraction failure", func(t *testing.T) {
		sum := &stubSummarizer{summary: "short"}
		got := New(cat, &stubExtractor{err: extract.ErrTooShort}, sum, log).Process(context.Background(), cand)
		if got != nil {
			t.Errorf("expected nil article, got %+v", got)
		}
		if sum.input != "" {
			t.Error("summarizer must not run after extraction failure")
		}
	})

	t.Run("summary failure", func(t *testing.T) {
		got := New(cat, &stubExtractor{text: "body"}, &stubSummarizer{err: errors.New("quota")}, log).
			Process(context.Background(), cand)
		if got != nil {
			t.Errorf("expected nil article, got %+v", got)
		}
	})
}
