// Package pipeline turns a candidate into a ready-to-send article.
package pipeline

import (
	"context"
	"log/slog"

	"newsbot/internal/catalog"
	"newsbot/internal/extract"
	"newsbot/internal/model"
)

// Extractor pulls article body text from a page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string, rules extract.Rules) (string, error)
}

// Summarizer condenses article text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Pipeline runs extraction and summarization for one candidate.
type Pipeline struct {
	catalog    *catalog.Provider
	extractor  Extractor
	summarizer Summarizer
	log        *slog.Logger
}

// New creates a Pipeline.
func New(cat *catalog.Provider, ex Extractor, sum Summarizer, log *slog.Logger) *Pipeline {
	return &Pipeline{catalog: cat, extractor: ex, summarizer: sum, log: log}
}

// Process returns the article for c, or nil when the candidate cannot be
// turned into one. A nil result is a normal outcome and is only logged.
func (p *Pipeline) Process(ctx context.Context, c model.Candidate) *model.Article {
	cur := p.catalog.Current()
	src, _ := cur.Source(c.SourceKey)
	rules := extract.Rules{
		Container:    src.Container,
		StripClasses: src.StripClasses,
		StripTags:    cur.StripTags,
	}

	text, err := p.extractor.Extract(ctx, c.Link, rules)
	if err != nil {
		p.log.Info("skip article: extraction failed", "link", c.Link, "source", c.SourceKey, "error", err)
		return nil
	}

	summary, err := p.summarizer.Summarize(ctx, text)
	if err != nil {
		p.log.Info("skip article: summarization failed", "link", c.Link, "source", c.SourceKey, "error", err)
		return nil
	}

	return &model.Article{Candidate: c, Summary: summary}
}
