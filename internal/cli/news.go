package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/ai776/daily-picks/internal/ai"
)

type newsCmd struct{}

func (*newsCmd) Name() string     { return "news" }
func (*newsCmd) Synopsis() string { return "fetch news for the configured holdings" }
func (*newsCmd) Usage() string {
	return `picks news

  Fetches up to ten recent stories about the configured holdings.
`
}

func (*newsCmd) SetFlags(*flag.FlagSet) {}

func (*newsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return fail("startup error: %v", err)
	}
	defer a.close()

	items, err := a.portfolio.RefreshNews(ctx)
	if err != nil {
		return fail("news: %v", err)
	}
	printNews(os.Stdout, items)
	return subcommands.ExitSuccess
}

func printNews(w io.Writer, items []ai.NewsItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No news.")
		return
	}
	for i, item := range items {
		fmt.Fprintf(w, "%d. %s\n", i+1, item.Headline)
		if item.Summary != item.Headline {
			fmt.Fprintf(w, "   %s\n", item.Summary)
		}
		if item.URL != "" {
			fmt.Fprintf(w, "   %s (%s)\n", item.URL, item.Source)
		}
	}
}
