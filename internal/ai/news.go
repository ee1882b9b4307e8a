package ai

import "strings"

const (
	storySeparator    = "|||"
	headlineSeparator = "::"
	maxNewsItems      = 10
)

// ParseNews splits a delimited news response into items. Stories are
// separated by "|||", headline and summary by the first "::". Sources are
// attached by index modulo len(sources); the association is best-effort.
func ParseNews(text string, sources []Source) []NewsItem {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil
	}
	text = StripThinkTags(raw)

	var items []NewsItem
	for _, story := range strings.Split(text, storySeparator) {
		story = strings.TrimSpace(story)
		if story == "" {
			continue
		}

		item := NewsItem{Headline: story, Summary: story}
		if head, summary, ok := strings.Cut(story, headlineSeparator); ok {
			head = strings.Trim(head, " *#-\n\t")
			summary = strings.TrimSpace(summary)
			switch {
			case head != "" && summary != "":
				item = NewsItem{Headline: head, Summary: summary}
			case head != "":
				item = NewsItem{Headline: head, Summary: head}
			case summary != "":
				item = NewsItem{Headline: summary, Summary: summary}
			}
		}
		items = append(items, item)
		if len(items) == maxNewsItems {
			break
		}
	}

	if len(items) == 0 {
		items = []NewsItem{{Headline: raw, Summary: raw}}
	}

	if len(sources) > 0 {
		for i := range items {
			src := sources[i%len(sources)]
			items[i].URL = src.URL
			items[i].Source = src.Label
		}
	}
	return items
}
