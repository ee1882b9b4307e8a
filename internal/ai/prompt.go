package ai

import (
	"fmt"
	"strings"
)

const iconPrompt = `Design a minimal, flat app icon for the stock ticker %s.
Use a bold geometric mark on a solid background. No text, no letters, no border.`

const receiptSystemPrompt = `You read screenshots of brokerage trade confirmations and portfolio screens.
Extract the purchase details and answer with a single JSON object using only these optional keys:
  "ticker"      - the stock symbol, e.g. "NVDA"
  "companyName" - the company name
  "quantity"    - number of shares (number)
  "avgPrice"    - average purchase price per share in USD (number)
Omit any key you cannot read with confidence. If the image contains no trade, answer {}.
Do not add commentary or markdown.`

const newsSystemPrompt = `You are a financial news desk. Report only recent, factual market news.
Format every story as "HEADLINE::SUMMARY" and separate stories with "|||".
Write at most 10 stories, each summary one or two sentences. No numbering and no markdown.`

const snapshotSystemPrompt = `You are a market data service. Look up the latest available prices.
Answer with a single JSON object and nothing else:
{"prices": {"TICKER": price_in_usd, ...}, "usdJpy": current_usd_to_jpy_rate}
Use plain numbers. Omit a ticker if you cannot find its price.`

const chatSystemPrompt = `You are a friendly personal investment assistant for a Japanese retail investor
who holds US stocks. Answer in the language of the question. Use markdown for structure.
You do not give personalised financial advice; explain risks plainly.

Current USD/JPY rate: %.2f

Current holdings (JSON):
%s`

// BuildNewsPrompt asks for stories about the given tickers.
func BuildNewsPrompt(tickers []string) string {
	return fmt.Sprintf("Find today's most important news affecting these stocks: %s.",
		strings.Join(tickers, ", "))
}

// BuildSnapshotPrompt asks for prices of the given tickers and the USD/JPY
// rate. With no tickers only the rate is requested.
func BuildSnapshotPrompt(tickers []string) string {
	if len(tickers) == 0 {
		return `Find the current USD/JPY exchange rate. Answer {"prices": {}, "usdJpy": rate}.`
	}
	return fmt.Sprintf("Find the latest share prices in USD for %s and the current USD/JPY exchange rate.",
		strings.Join(tickers, ", "))
}

func buildChatSystemPrompt(portfolioContext string, rate float64) string {
	if strings.TrimSpace(portfolioContext) == "" {
		portfolioContext = "[]"
	}
	return fmt.Sprintf(chatSystemPrompt, rate, portfolioContext)
}
