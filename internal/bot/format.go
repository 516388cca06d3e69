package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"newsbot/internal/catalog"
	"newsbot/internal/delivery"
	"newsbot/internal/model"
)

const (
	statusOn  = "on"
	statusOff = "off"
)

func categoryTitle(name string) string {
	return delivery.CategoryTitle(name)
}

// FormatSettings renders a recipient's preferences. next is the armed
// schedule of the recipient, nil when none.
func FormatSettings(p model.Preferences, next *model.ScheduleInfo, cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("Your settings:\n\n")

	b.WriteString("Categories:")
	for _, c := range p.Categories {
		fmt.Fprintf(&b, " %s %s", cat.Emoji(c), categoryTitle(c))
	}
	b.WriteString("\n")

	clock := p.PreferredTime
	if clock == "" {
		clock = "not set"
	}
	fmt.Fprintf(&b, "Delivery time: %s\n", clock)
	fmt.Fprintf(&b, "Timezone: %s\n", p.Timezone)
	fmt.Fprintf(&b, "Articles per category: %d\n", p.DailyLimit)

	status := statusOff
	if p.Notifications {
		status = statusOn
	}
	fmt.Fprintf(&b, "Daily delivery: %s\n", status)

	if next != nil {
		fmt.Fprintf(&b, "Next delivery: %s\n", next.NextFire.In(p.Location()).Format("Mon 2 Jan 15:04 MST"))
	}
	return b.String()
}

// FormatSources lists catalog categories with their sources.
func FormatSources(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("News sources:\n")
	for _, c := range cat.Categories {
		fmt.Fprintf(&b, "\n%s %s\n", cat.Emoji(c.Name), categoryTitle(c.Name))
		if c.Description != "" {
			fmt.Fprintf(&b, "   %s\n", c.Description)
		}
		for _, src := range c.Sources {
			fmt.Fprintf(&b, "   - %s\n", src.Name)
		}
	}
	return b.String()
}

// FormatSchedules renders armed schedules relative to now.
func FormatSchedules(list []model.ScheduleInfo, now time.Time) string {
	if len(list) == 0 {
		return "No daily deliveries are scheduled."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Scheduled deliveries (%d):\n", len(list))
	for _, s := range list {
		fmt.Fprintf(&b, "\n%d: %s %s, next %s (%s)\n   %s\n",
			s.RecipientID, s.Time, s.Timezone,
			s.NextFire.UTC().Format("2006-01-02 15:04 UTC"),
			humanize.RelTime(s.NextFire, now, "ago", "from now"),
			strings.Join(s.Categories, ", "))
	}
	return b.String()
}

// FormatStats renders usage counters for administrators.
func FormatStats(st model.Stats, armed int) string {
	var b strings.Builder
	b.WriteString("Bot status:\n\n")
	fmt.Fprintf(&b, "Recipients: %s (%s new today)\n", humanize.Comma(int64(st.TotalRecipients)), humanize.Comma(int64(st.NewToday)))
	fmt.Fprintf(&b, "Active last 7 days: %s\n", humanize.Comma(int64(st.ActiveLastWeek)))
	fmt.Fprintf(&b, "Daily delivery enabled: %s (%d timers armed)\n", humanize.Comma(int64(st.Scheduled)), armed)
	fmt.Fprintf(&b, "Delivery runs today: %s\n", humanize.Comma(int64(st.DeliveriesToday)))
	fmt.Fprintf(&b, "Articles sent today: %s\n", humanize.Comma(int64(st.ArticlesToday)))
	fmt.Fprintf(&b, "Ledger entries: %s\n", humanize.Comma(int64(st.LedgerSize)))
	return b.String()
}
