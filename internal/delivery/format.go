package delivery

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"newsbot/internal/model"
)

// CategoryTitle renders a category name for display, e.g. "technology" as
// "Technology".
func CategoryTitle(name string) string {
	return cases.Title(language.English).String(name)
}

// FormatHeader opens a delivery run.
func FormatHeader(emoji, category string, day time.Time, candidates int) string {
	noun := "articles"
	if candidates == 1 {
		noun = "article"
	}
	return fmt.Sprintf("%s %s news for %s\nFound %d new %s.",
		emoji, CategoryTitle(category), day.Format("Monday, 2 January 2006"), candidates, noun)
}

// FormatFooter closes a delivery run.
func FormatFooter(sent, candidates int) string {
	return fmt.Sprintf("Sent %d of %d available articles.", sent, candidates)
}

// FormatNothingNew tells the recipient there is nothing to deliver.
func FormatNothingNew(emoji, category string) string {
	return fmt.Sprintf("%s No new %s articles right now. Check back later!", emoji, category)
}

// FormatArticle renders a single summarized article.
func FormatArticle(a model.Article, emoji string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", emoji, a.Title)
	b.WriteString(a.Summary)
	if a.SourceName != "" {
		fmt.Fprintf(&b, "\n\nSource: %s", a.SourceName)
	}
	fmt.Fprintf(&b, "\nRead more: %s", a.Link)
	return b.String()
}
