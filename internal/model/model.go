// Package model defines the domain types used across the application.
package model

import (
	"slices"
	"strings"
	"time"
)

// Default preference values applied to recipients that never changed them.
const (
	DefaultTimezone   = "UTC"
	DefaultDailyLimit = 5
	MaxDailyLimit     = 50
)

// DefaultCategories returns the subscription set of a freshly registered recipient.
func DefaultCategories() []string {
	return []string{"technology", "science", "sports", "business"}
}

// Recipient is a chat that interacts with the bot and receives digests.
type Recipient struct {
	ID          int64
	Username    string
	DisplayName string
	Active      bool
	CreatedAt   time.Time
	LastSeenAt  time.Time
}

// Preferences holds the delivery settings of a single recipient.
// PreferredTime is "HH:MM" in Timezone; empty disables scheduling.
type Preferences struct {
	RecipientID     int64
	Categories      []string
	PreferredTime   string
	Timezone        string
	DailyLimit      int
	Notifications   bool
	LastScheduledAt *time.Time
	UpdatedAt       time.Time
}

// DefaultPreferences returns the preferences used when none are stored.
func DefaultPreferences(recipientID int64) Preferences {
	return Preferences{
		RecipientID: recipientID,
		Categories:  DefaultCategories(),
		Timezone:    DefaultTimezone,
		DailyLimit:  DefaultDailyLimit,
	}
}

// Schedulable reports whether the preferences ask for a daily delivery.
func (p Preferences) Schedulable() bool {
	return p.Notifications && p.PreferredTime != ""
}

// Location resolves Timezone, falling back to UTC for unknown names.
func (p Preferences) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PreferencesUpdate is a partial update; nil fields are left unchanged.
type PreferencesUpdate struct {
	Categories    *[]string
	PreferredTime *string
	Timezone      *string
	DailyLimit    *int
	Notifications *bool
}

// Empty reports whether the update changes nothing.
func (u PreferencesUpdate) Empty() bool {
	return u.Categories == nil && u.PreferredTime == nil && u.Timezone == nil &&
		u.DailyLimit == nil && u.Notifications == nil
}

// SentRecord is a ledger entry proving that a title was delivered to a recipient.
type SentRecord struct {
	RecipientID int64
	Title       string
	Link        string
	Category    string
	Source      string
	SentAt      time.Time
}

// Candidate is a fetched news item that has not been processed yet.
type Candidate struct {
	Title      string
	Link       string
	SourceKey  string
	SourceName string
	Category   string
}

// Valid reports whether the candidate carries both a title and a link.
func (c Candidate) Valid() bool {
	return strings.TrimSpace(c.Title) != "" && strings.TrimSpace(c.Link) != ""
}

// Article is a candidate that went through extraction and summarization.
type Article struct {
	Candidate
	Summary string
}

// ScheduleInfo describes an armed daily delivery.
type ScheduleInfo struct {
	RecipientID int64
	Time        string
	Timezone    string
	Categories  []string
	NextFire    time.Time
}

// DeliveryStat summarizes a single delivery run.
type DeliveryStat struct {
	RecipientID int64
	Category    string
	Candidates  int
	Sent        int
	StartedAt   time.Time
	Duration    time.Duration
}

// Stats aggregates recipient and delivery counters.
type Stats struct {
	TotalRecipients int
	NewToday        int
	ActiveLastWeek  int
	Scheduled       int
	DeliveriesToday int
	ArticlesToday   int
	LedgerSize      int
}

// NormalizeCategories lowercases, trims and deduplicates category names,
// keeping the first occurrence order.
func NormalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
