package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ai776/daily-picks/internal/ai"
	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/chat"
	"github.com/ai776/daily-picks/internal/events"
	"github.com/ai776/daily-picks/internal/logger"
	"github.com/ai776/daily-picks/internal/portfolio"
	"github.com/ai776/daily-picks/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	snap *ai.MarketSnapshot
	news []ai.NewsItem
}

func (f *fakeGateway) SynthesizeIcon(context.Context, string) *asset.Icon { return nil }
func (f *fakeGateway) FetchMarketSnapshot(context.Context, []string) *ai.MarketSnapshot {
	return f.snap
}
func (f *fakeGateway) FetchNews(context.Context, []string) []ai.NewsItem { return f.news }

type fakeScanner struct {
	fields  *ai.TradeFields
	err     error
	gotMIME string
	gotLen  int
}

func (f *fakeScanner) ExtractTradeFields(_ context.Context, image []byte, mimeType string) (*ai.TradeFields, error) {
	f.gotMIME = mimeType
	f.gotLen = len(image)
	return f.fields, f.err
}

type fakeStreamer struct {
	fragments []string
	err       error
}

func (f *fakeStreamer) StreamChatReply(context.Context, []ai.Turn, string, string, float64) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, frag := range f.fragments {
			if !yield(frag, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

type fakeSubscriber struct {
	events []events.Event
}

func (f *fakeSubscriber) Subscribe() (<-chan events.Event, func()) {
	ch := make(chan events.Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch, func() {}
}

type testEnv struct {
	server  *Server
	svc     *portfolio.Service
	gateway *fakeGateway
	scanner *fakeScanner
	stream  *fakeStreamer
	repo    *storage.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Nop()
	gw := &fakeGateway{}
	svc := portfolio.NewService(gw, nil, 150, log)
	st := &fakeStreamer{}
	sc := &fakeScanner{}

	db, err := storage.NewDatabase("")
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	repo := storage.NewRepository(db, log)

	srv := NewServer(Deps{
		Portfolio: svc,
		Scanner:   sc,
		Chat:      chat.NewSession(st, svc, nil, "エラー", log),
		Events:    &fakeSubscriber{events: []events.Event{{Kind: events.RateUpdated, At: time.Unix(0, 0), Payload: 151.0}}},
		Journal:   repo,
	}, 0, log)
	return &testEnv{server: srv, svc: svc, gateway: gw, scanner: sc, stream: st, repo: repo}
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env.server.Handler(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAddAssetAndPortfolio(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()

	rec := doRequest(h, http.MethodPost, "/api/assets", `{"ticker":"aaa","quantity":2,"avgPrice":10,"source":"gemini"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := parseJSON(t, rec)["asset"].(map[string]interface{})
	if got["ticker"] != "AAA" || got["source"] != "gemini" {
		t.Errorf("asset = %v", got)
	}

	env.gateway.snap = &ai.MarketSnapshot{Prices: map[string]float64{"AAA": 15}}
	rec = doRequest(h, http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}

	rec = doRequest(h, http.MethodGet, "/api/portfolio", "")
	summary := parseJSON(t, rec)["portfolio"].(map[string]interface{})["summary"].(map[string]interface{})
	if summary["totalValue"] != 30.0 || summary["gainPercentage"] != 50.0 {
		t.Errorf("summary = %v", summary)
	}

	snaps, err := env.repo.GetRecentSnapshots(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 0 {
		t.Errorf("service built without a recorder stored %d snapshots", len(snaps))
	}
}

func TestAddAsset_Invalid(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"ticker":`},
		{"missing ticker", `{"quantity":1}`},
		{"unknown source", `{"ticker":"AAA","source":"bard"}`},
		{"negative quantity", `{"ticker":"AAA","quantity":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(env.server.Handler(), http.MethodPost, "/api/assets", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSetExchangeRate(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()

	if rec := doRequest(h, http.MethodPut, "/api/exchange-rate", `{"rate":-5}`); rec.Code != http.StatusBadRequest {
		t.Errorf("negative rate status = %d", rec.Code)
	}
	if rec := doRequest(h, http.MethodPut, "/api/exchange-rate", `{"rate":148.5}`); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if env.svc.ExchangeRate() != 148.5 {
		t.Errorf("rate = %v", env.svc.ExchangeRate())
	}
}

func TestNews(t *testing.T) {
	env := newTestEnv(t)
	h := env.server.Handler()

	rec := doRequest(h, http.MethodGet, "/api/news", "")
	if news := parseJSON(t, rec)["news"].([]interface{}); len(news) != 0 {
		t.Errorf("news = %v, want empty list", news)
	}

	env.gateway.news = []ai.NewsItem{{Headline: "h", Summary: "s"}}
	rec = doRequest(h, http.MethodPost, "/api/news/refresh", "")
	if news := parseJSON(t, rec)["news"].([]interface{}); len(news) != 1 {
		t.Errorf("news = %v", news)
	}
}

func newReceiptRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "receipt.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(image)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/receipts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestScanReceipt_PatchesOnlyRecognisedFields(t *testing.T) {
	env := newTestEnv(t)
	ticker := "MSFT"
	env.scanner.fields = &ai.TradeFields{Ticker: &ticker}

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, newReceiptRequest(t, map[string]string{"quantity": "5", "avgPrice": "300"}, pngHeader))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := parseJSON(t, rec)
	draft := resp["draft"].(map[string]interface{})
	if draft["ticker"] != "MSFT" || draft["quantity"] != 5.0 || draft["avgPrice"] != 300.0 {
		t.Errorf("draft = %v", draft)
	}
	if resp["found"] != true || resp["applied"] != 1.0 {
		t.Errorf("response = %v", resp)
	}
	if env.scanner.gotMIME != "image/png" || env.scanner.gotLen != len(pngHeader) {
		t.Errorf("scanner got %s/%d bytes", env.scanner.gotMIME, env.scanner.gotLen)
	}
}

func TestScanReceipt_Errors(t *testing.T) {
	tests := []struct {
		name       string
		scanErr    error
		image      []byte
		fields     map[string]string
		wantStatus int
	}{
		{"malformed response", ai.ErrMalformedResponse, pngHeader, nil, http.StatusUnprocessableEntity},
		{"missing file", nil, nil, nil, http.StatusBadRequest},
		{"bad quantity", nil, pngHeader, map[string]string{"quantity": "lots"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.scanner.err = tt.scanErr
			rec := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rec, newReceiptRequest(t, tt.fields, tt.image))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestScanReceipt_NothingFound(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, newReceiptRequest(t, map[string]string{"ticker": "aapl"}, pngHeader))

	resp := parseJSON(t, rec)
	if resp["found"] != false {
		t.Errorf("response = %v", resp)
	}
	if draft := resp["draft"].(map[string]interface{}); draft["ticker"] != "AAPL" {
		t.Errorf("draft = %v", draft)
	}
}

func TestSendChat_StreamsSSE(t *testing.T) {
	env := newTestEnv(t)
	env.stream.fragments = []string{"Hel", "lo"}

	rec := doRequest(env.server.Handler(), http.MethodPost, "/api/chat", `{"message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"text":"Hello"`) || !strings.Contains(body, "event:done") {
		t.Errorf("body = %s", body)
	}

	rec = doRequest(env.server.Handler(), http.MethodGet, "/api/chat", "")
	resp := parseJSON(t, rec)
	if msgs := resp["messages"].([]interface{}); len(msgs) != 2 || resp["state"] != "idle" {
		t.Errorf("chat = %v", resp)
	}
}

func TestSendChat_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.stream.err = errors.New("reset")

	rec := doRequest(env.server.Handler(), http.MethodPost, "/api/chat", `{"message":"hi"}`)
	if !strings.Contains(rec.Body.String(), "エラー") {
		t.Errorf("body = %s, want the fixed error message", rec.Body.String())
	}
}

func TestSendChat_EmptyMessage(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{`{}`, `{"message":"   "}`} {
		if rec := doRequest(env.server.Handler(), http.MethodPost, "/api/chat", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestStreamEvents(t *testing.T) {
	env := newTestEnv(t)
	rec := doRequest(env.server.Handler(), http.MethodGet, "/api/events", "")
	body := rec.Body.String()
	if !strings.Contains(body, "event:rate.updated") || !strings.Contains(body, "151") {
		t.Errorf("body = %s", body)
	}
}

func TestHistoryAndCalls(t *testing.T) {
	env := newTestEnv(t)
	env.repo.RecordCall(ai.CapabilityNews, "fake", time.Second, "ok", nil)
	if err := env.repo.RecordSnapshot([]asset.Record{{Ticker: "AAA", Quantity: 1, AvgPrice: 1, CurrentPrice: 2}}, 150); err != nil {
		t.Fatal(err)
	}
	h := env.server.Handler()

	if snaps := parseJSON(t, doRequest(h, http.MethodGet, "/api/history?limit=5", ""))["snapshots"].([]interface{}); len(snaps) != 1 {
		t.Errorf("snapshots = %v", snaps)
	}
	if calls := parseJSON(t, doRequest(h, http.MethodGet, "/api/calls", ""))["calls"].([]interface{}); len(calls) != 1 {
		t.Errorf("calls = %v", calls)
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Seed(asset.Input{Ticker: "NVDA", Quantity: 1, AvgPrice: 100}); err != nil {
		t.Fatal(err)
	}
	rec := doRequest(env.server.Handler(), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "NVDA") || !strings.Contains(body, "$100.00") || !strings.Contains(body, `class="glyph">N<`) {
		t.Errorf("dashboard missing holding: %s", body)
	}
}
