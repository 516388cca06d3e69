// Package delivery runs one digest delivery for a (recipient, category) pair.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"newsbot/internal/catalog"
	"newsbot/internal/model"
)

// Fetcher returns candidates offered by a source.
type Fetcher interface {
	Fetch(ctx context.Context, category string, src catalog.Source) ([]model.Candidate, error)
}

// Ledger is the dedup ledger.
type Ledger interface {
	WasSent(ctx context.Context, recipientID int64, title string) bool
	Record(ctx context.Context, rec model.SentRecord) bool
}

// Preferences resolves recipient settings.
type Preferences interface {
	Get(ctx context.Context, recipientID int64) model.Preferences
}

// Pipeline prepares a candidate for sending; nil means skip.
type Pipeline interface {
	Process(ctx context.Context, c model.Candidate) *model.Article
}

// Sender delivers a text message.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// StatsRecorder persists run statistics.
type StatsRecorder interface {
	RecordDelivery(ctx context.Context, st model.DeliveryStat) error
}

// Options tune a Runner.
type Options struct {
	// Pacing is the pause after each delivered article.
	Pacing time.Duration
	// FetchConcurrency bounds parallel source fetches within one run.
	FetchConcurrency int
}

// Runner executes delivery runs. Runs for the same recipient are
// serialized; runs for different recipients proceed in parallel.
type Runner struct {
	catalog  *catalog.Provider
	fetcher  Fetcher
	ledger   Ledger
	prefs    Preferences
	pipeline Pipeline
	sender   Sender
	stats    StatsRecorder
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	locks recipientLocks
}

// New creates a Runner. stats may be nil.
func New(cat *catalog.Provider, f Fetcher, l Ledger, p Preferences, pl Pipeline, s Sender,
	stats StatsRecorder, opts Options, log *slog.Logger,
) *Runner {
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 4
	}
	return &Runner{
		catalog:  cat,
		fetcher:  f,
		ledger:   l,
		prefs:    p,
		pipeline: pl,
		sender:   s,
		stats:    stats,
		opts:     opts,
		log:      log,
		now:      time.Now,
		locks:    recipientLocks{m: make(map[int64]chan struct{})},
	}
}

// Run delivers up to the recipient's daily limit of new articles from
// category and returns how many were sent.
func (r *Runner) Run(ctx context.Context, recipientID int64, category string) int {
	log := r.log.With("run_id", uuid.NewString(), "recipient_id", recipientID, "category", category)

	unlock, err := r.locks.lock(ctx, recipientID)
	if err != nil {
		log.Warn("delivery run abandoned while waiting for previous run", "error", err)
		return 0
	}
	defer unlock()

	started := r.now()
	prefs := r.prefs.Get(ctx, recipientID)

	cur := r.catalog.Current()
	cat, ok := cur.Category(category)
	if !ok {
		log.Warn("unknown category")
		return 0
	}
	emoji := cur.Emoji(cat.Name)

	candidates := r.collect(ctx, log, recipientID, cat)
	if len(candidates) == 0 {
		r.notify(ctx, log, recipientID, FormatNothingNew(emoji, cat.Name))
		r.recordStat(ctx, log, recipientID, cat.Name, 0, 0, started)
		log.Info("nothing new to deliver")
		return 0
	}

	day := started.In(prefs.Location())
	r.notify(ctx, log, recipientID, FormatHeader(emoji, cat.Name, day, len(candidates)))

	sent := 0
	for _, c := range candidates {
		if sent >= prefs.DailyLimit || ctx.Err() != nil {
			break
		}
		if !r.deliver(ctx, log, recipientID, c, emoji) {
			continue
		}
		sent++
		if sent < prefs.DailyLimit {
			if err := sleep(ctx, r.opts.Pacing); err != nil {
				break
			}
		}
	}

	r.notify(ctx, log, recipientID, FormatFooter(sent, len(candidates)))
	r.recordStat(ctx, log, recipientID, cat.Name, len(candidates), sent, started)

	log.Info("delivery run finished",
		"sent", sent,
		"candidates", len(candidates),
		"limit", prefs.DailyLimit,
		"duration", r.now().Sub(started),
	)
	return sent
}

// collect fetches every source of cat and returns fresh candidates in
// source order.
func (r *Runner) collect(ctx context.Context, log *slog.Logger, recipientID int64, cat catalog.Category) []model.Candidate {
	results := make([][]model.Candidate, len(cat.Sources))

	var g errgroup.Group
	g.SetLimit(r.opts.FetchConcurrency)
	for i, src := range cat.Sources {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					log.Error("fetch panicked", "source", src.Key, "panic", p, "stack", string(debug.Stack()))
				}
			}()
			items, err := r.fetcher.Fetch(ctx, cat.Name, src)
			if err != nil {
				log.Warn("fetch source failed", "source", src.Key, "error", err)
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool)
	var out []model.Candidate
	for i, items := range results {
		rules := cat.Sources[i].Rules()
		for _, c := range items {
			if !c.Valid() || seen[c.Title] || !rules.Match(c.Title) {
				continue
			}
			if r.ledger.WasSent(ctx, recipientID, c.Title) {
				continue
			}
			seen[c.Title] = true
			out = append(out, c)
		}
	}
	return out
}

// deliver processes and sends one candidate. It reports whether the
// article reached the recipient.
func (r *Runner) deliver(ctx context.Context, log *slog.Logger, recipientID int64, c model.Candidate, emoji string) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("article delivery panicked", "title", c.Title, "panic", p, "stack", string(debug.Stack()))
			ok = false
		}
	}()

	art := r.pipeline.Process(ctx, c)
	if art == nil {
		return false
	}
	if err := r.sender.Send(ctx, recipientID, FormatArticle(*art, emoji)); err != nil {
		log.Warn("send article failed", "title", c.Title, "error", err)
		return false
	}
	if !r.ledger.Record(ctx, model.SentRecord{
		RecipientID: recipientID,
		Title:       c.Title,
		Link:        c.Link,
		Category:    c.Category,
		Source:      c.SourceKey,
		SentAt:      r.now(),
	}) {
		log.Warn("article sent but not recorded", "title", c.Title)
	}
	return true
}

func (r *Runner) notify(ctx context.Context, log *slog.Logger, recipientID int64, text string) {
	if err := r.sender.Send(ctx, recipientID, text); err != nil {
		log.Warn("send notice failed", "error", err)
	}
}

func (r *Runner) recordStat(ctx context.Context, log *slog.Logger, recipientID int64, category string, candidates, sent int, started time.Time) {
	if r.stats == nil {
		return
	}
	err := r.stats.RecordDelivery(ctx, model.DeliveryStat{
		RecipientID: recipientID,
		Category:    category,
		Candidates:  candidates,
		Sent:        sent,
		StartedAt:   started,
		Duration:    r.now().Sub(started),
	})
	if err != nil {
		log.Warn("record delivery stat", "error", err)
	}
}

type recipientLocks struct {
	mu sync.Mutex
	m  map[int64]chan struct{}
}

func (l *recipientLocks) lock(ctx context.Context, id int64) (func(), error) {
	l.mu.Lock()
	ch, ok := l.m[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.m[id] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for recipient lock: %w", ctx.Err())
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
