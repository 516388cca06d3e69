// Package scheduler arms one daily delivery timer per recipient and runs the
// recipient's categories when it fires.
package scheduler

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"newsbot/internal/catalog"
	"newsbot/internal/delivery"
	"newsbot/internal/model"
)

// DefaultGrace is how late a firing may start before it is skipped.
const DefaultGrace = time.Hour

// Preferences is the part of the preference store used by the scheduler.
type Preferences interface {
	Get(ctx context.Context, recipientID int64) model.Preferences
	ListSchedulable(ctx context.Context) ([]model.Preferences, error)
	MarkScheduled(ctx context.Context, recipientID int64, at time.Time) error
}

// Runner performs a delivery run.
type Runner interface {
	Run(ctx context.Context, recipientID int64, category string) int
}

// Notifier sends the post-delivery summary.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Options tune a Scheduler.
type Options struct {
	Grace         time.Duration
	CategoryPause time.Duration
}

type entry struct {
	id         cron.EntryID
	schedule   cron.Schedule
	hour       int
	minute     int
	loc        *time.Location
	timezone   string
	categories []string
	last       *time.Time
}

// fired reports whether the occurrence at nominal already started. The
// repeated wall clock of a fall-back day counts as the same occurrence.
func (e *entry) fired(nominal time.Time) bool {
	if e.last == nil {
		return false
	}
	return !e.last.Before(nominal) || model.SameWallClock(*e.last, nominal, e.loc)
}

// Scheduler keeps at most one cron entry per recipient.
type Scheduler struct {
	prefs    Preferences
	runner   Runner
	notifier Notifier
	catalog  *catalog.Provider
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	cron *cron.Cron

	mu      sync.Mutex
	entries map[int64]*entry

	runCtx   context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// New creates a Scheduler. Nothing fires until Start is called.
func New(prefs Preferences, runner Runner, notifier Notifier, cat *catalog.Provider, opts Options, log *slog.Logger) *Scheduler {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		prefs:    prefs,
		runner:   runner,
		notifier: notifier,
		catalog:  cat,
		opts:     opts,
		log:      log,
		now:      time.Now,
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		entries:  make(map[int64]*entry),
		runCtx:   ctx,
		cancel:   cancel,
	}
}

// Load arms an entry for every schedulable recipient without starting the
// timer loop.
func (s *Scheduler) Load(ctx context.Context) error {
	list, err := s.prefs.ListSchedulable(ctx)
	if err != nil {
		return fmt.Errorf("list schedulable recipients: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range list {
		if err := s.armLocked(p); err != nil {
			s.log.Warn("recipient left unscheduled", "recipient_id", p.RecipientID, "error", err)
		}
	}
	s.log.Info("schedules loaded", "count", len(s.entries))
	return nil
}

// Start loads all schedules, fires deliveries missed within the grace
// window and starts the timer loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cancel()
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if err := s.Load(ctx); err != nil {
		return err
	}
	s.catchUp()
	s.cron.Start()
	return nil
}

// Stop prevents future firings and waits for running ones until ctx is
// done, at which point running deliveries are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("wait for running deliveries: %w", ctx.Err())
	}
}

// UpdateSchedule re-reads the recipient's preferences and replaces its
// entry. Recipients without notifications or a time end up unscheduled.
func (s *Scheduler) UpdateSchedule(ctx context.Context, recipientID int64) error {
	p := s.prefs.Get(ctx, recipientID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(recipientID)
	if !p.Schedulable() {
		s.log.Debug("schedule cleared", "recipient_id", recipientID)
		return nil
	}
	return s.armLocked(p)
}

// Remove cancels future firings for the recipient and reports whether an
// entry existed.
func (s *Scheduler) Remove(recipientID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(recipientID)
}

// List returns armed schedules ordered by next firing.
func (s *Scheduler) List() []model.ScheduleInfo {
	now := s.now()

	s.mu.Lock()
	out := make([]model.ScheduleInfo, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, model.ScheduleInfo{
			RecipientID: id,
			Time:        model.FormatClock(e.hour, e.minute),
			Timezone:    e.timezone,
			Categories:  slices.Clone(e.categories),
			NextFire:    e.schedule.Next(now),
		})
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b model.ScheduleInfo) int {
		if c := a.NextFire.Compare(b.NextFire); c != 0 {
			return c
		}
		return cmp.Compare(a.RecipientID, b.RecipientID)
	})
	return out
}

func (s *Scheduler) armLocked(p model.Preferences) error {
	s.removeLocked(p.RecipientID)

	hour, minute, err := model.ParseClock(p.PreferredTime)
	if err != nil {
		return fmt.Errorf("parse preferred time: %w", err)
	}

	tz := p.Timezone
	if tz == "" {
		tz = model.DefaultTimezone
	}
	sched, loc, err := dailySchedule(hour, minute, tz)
	if err != nil {
		s.log.Warn("invalid timezone, scheduling in UTC", "recipient_id", p.RecipientID, "timezone", tz, "error", err)
		tz = model.DefaultTimezone
		if sched, loc, err = dailySchedule(hour, minute, tz); err != nil {
			return fmt.Errorf("build schedule: %w", err)
		}
	}

	categories := slices.Clone(p.Categories)
	if len(categories) == 0 {
		categories = s.catalog.Current().Names()
	}

	id := p.RecipientID
	e := &entry{
		schedule:   sched,
		hour:       hour,
		minute:     minute,
		loc:        loc,
		timezone:   tz,
		categories: categories,
		last:       p.LastScheduledAt,
	}
	e.id = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id) }))
	s.entries[id] = e

	s.log.Debug("schedule armed", "recipient_id", id, "time", model.FormatClock(hour, minute), "timezone", tz)
	return nil
}

func (s *Scheduler) removeLocked(recipientID int64) bool {
	e, ok := s.entries[recipientID]
	if !ok {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.entries, recipientID)
	return true
}

func dailySchedule(hour, minute int, tz string) (cron.Schedule, *time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, nil, err
	}
	sched, err := cron.ParseStandard(fmt.Sprintf("CRON_TZ=%s %d %d * * *", tz, minute, hour))
	if err != nil {
		return nil, nil, err
	}
	return sched, loc, nil
}

// catchUp fires recipients whose latest occurrence passed within the grace
// window and has not started yet.
func (s *Scheduler) catchUp() {
	now := s.now()

	s.mu.Lock()
	var due []int64
	for id, e := range s.entries {
		nominal := model.PrevOccurrence(now, e.hour, e.minute, e.loc)
		if now.Sub(nominal) > s.opts.Grace {
			continue
		}
		if e.fired(nominal) {
			continue
		}
		due = append(due, id)
	}
	s.mu.Unlock()

	for _, id := range due {
		s.log.Info("catching up missed delivery", "recipient_id", id)
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			defer func() {
				if p := recover(); p != nil {
					s.log.Error("catch-up delivery panicked", "recipient_id", id, "panic", p)
				}
			}()
			s.fire(id)
		}()
	}
}

func (s *Scheduler) fire(recipientID int64) {
	ctx := s.runCtx
	now := s.now()

	s.mu.Lock()
	e, ok := s.entries[recipientID]
	if !ok {
		s.mu.Unlock()
		return
	}
	nominal := model.PrevOccurrence(now, e.hour, e.minute, e.loc)
	if e.fired(nominal) {
		s.mu.Unlock()
		return
	}
	e.last = &nominal
	categories := slices.Clone(e.categories)
	s.mu.Unlock()

	log := s.log.With("recipient_id", recipientID, "nominal", nominal)

	if late := now.Sub(nominal); late > s.opts.Grace {
		log.Warn("scheduled delivery missed its grace window, skipping", "late", late)
		return
	}

	p := s.prefs.Get(ctx, recipientID)
	if !p.Notifications {
		log.Info("notifications disabled since scheduling, skipping")
		return
	}
	if err := s.prefs.MarkScheduled(ctx, recipientID, nominal); err != nil {
		log.Warn("mark scheduled", "error", err)
	}

	log.Info("scheduled delivery started", "categories", categories)
	total := 0
	for i, cat := range categories {
		if i > 0 && !pause(ctx, s.opts.CategoryPause) {
			break
		}
		total += s.runner.Run(ctx, recipientID, cat)
	}
	log.Info("scheduled delivery finished", "sent", total)

	if total == 0 {
		return
	}
	summary := FormatSummary(nominal.In(e.loc), total, categories, s.catalog.Current())
	if err := s.notifier.Send(ctx, recipientID, summary); err != nil {
		log.Warn("send delivery summary", "error", err)
	}
}

// FormatSummary renders the notice sent after a scheduled delivery.
func FormatSummary(at time.Time, sent int, categories []string, cat *catalog.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📬 Daily News Delivered (%s)\n\n", at.Format("15:04"))
	noun := "articles"
	if sent == 1 {
		noun = "article"
	}
	fmt.Fprintf(&b, "Sent %d %s from:\n", sent, noun)
	for _, name := range categories {
		fmt.Fprintf(&b, "%s %s\n", cat.Emoji(name), delivery.CategoryTitle(name))
	}
	b.WriteString("\nUse /settings to change your delivery time.")
	return b.String()
}

func pause(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
