package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/portfolio"
)

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "refresh prices and print the portfolio" }
func (*quoteCmd) Usage() string {
	return `picks quote

  Looks up current prices and the USD/JPY rate for the configured holdings
  and prints the valuation.
`
}

func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return fail("startup error: %v", err)
	}
	defer a.close()

	res, err := a.portfolio.RefreshMarketData(ctx)
	if err != nil {
		return fail("refresh: %v", err)
	}
	if !res.Available {
		fmt.Fprintln(os.Stderr, "market data unavailable, showing last known values")
	}

	printView(os.Stdout, a.portfolio.View())
	return subcommands.ExitSuccess
}

func printView(w io.Writer, v portfolio.View) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tQTY\tAVG\tPRICE\tVALUE\tGAIN\tSOURCE")
	for _, r := range v.Assets {
		fmt.Fprintf(tw, "%s\t%g\t%s\t%s\t%s\t%+.2f%%\t%s\n",
			r.Ticker, r.Quantity,
			asset.FormatUSD(r.AvgPrice), asset.FormatUSD(r.CurrentPrice),
			asset.FormatUSD(r.MarketValue()), r.GainPercentage(), r.Source)
	}
	tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total value: %s (%s)\n", asset.FormatUSD(v.Summary.TotalValue), asset.FormatJPY(v.TotalValueJPY))
	fmt.Fprintf(w, "Total gain:  %s (%s, %+.2f%%)\n", asset.FormatUSD(v.Summary.TotalGain), asset.FormatJPY(v.TotalGainJPY), v.Summary.GainPercentage)
	fmt.Fprintf(w, "USD/JPY:     %.2f\n", v.ExchangeRate)
}
