package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ai776/daily-picks/internal/ai"
	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/chat"
	"github.com/ai776/daily-picks/internal/portfolio"
	"github.com/ai776/daily-picks/internal/storage"
)

const maxReceiptBytes = 10 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// respondWithError maps domain errors to status codes.
func respondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, portfolio.ErrRefreshInProgress), errors.Is(err, chat.ErrTurnInProgress):
		status = http.StatusConflict
	case errors.Is(err, ai.ErrMalformedResponse):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, portfolio.ErrInvalidExchangeRate),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, ai.ErrInvalidInput),
		errors.As(err, &verrs):
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (s *Server) getPortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"portfolio": s.deps.Portfolio.View()})
}

func (s *Server) addAsset(c *gin.Context) {
	var in asset.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	rec, err := s.deps.Portfolio.AddAsset(c.Request.Context(), in)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"asset": rec})
}

func (s *Server) refresh(c *gin.Context) {
	res, err := s.deps.Portfolio.RefreshMarketData(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refresh": res, "portfolio": s.deps.Portfolio.View()})
}

type exchangeRateRequest struct {
	Rate float64 `json:"rate" binding:"required"`
}

func (s *Server) setExchangeRate(c *gin.Context) {
	var req exchangeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.deps.Portfolio.SetExchangeRate(req.Rate); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"portfolio": s.deps.Portfolio.View()})
}

func (s *Server) getNews(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"news": nonNil(s.deps.Portfolio.News())})
}

func (s *Server) refreshNews(c *gin.Context) {
	items, err := s.deps.Portfolio.RefreshNews(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"news": nonNil(items)})
}

// scanReceipt reads the uploaded screenshot fully, extracts trade fields
// and patches the draft sent alongside it.
func (s *Server) scanReceipt(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, fmt.Errorf("image file is required: %w", err))
		return
	}
	if fh.Size > maxReceiptBytes {
		badRequest(c, fmt.Errorf("image exceeds %d bytes", maxReceiptBytes))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondWithError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxReceiptBytes))
	f.Close()
	if err != nil {
		respondWithError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	draft, err := draftFromForm(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	fields, err := s.deps.Scanner.ExtractTradeFields(c.Request.Context(), data, mimeType)
	if err != nil {
		respondWithError(c, err)
		return
	}

	applied := 0
	if fields != nil {
		applied = draft.Apply(fields.Patch())
	}
	s.logger.Info("receipt scanned", "found", fields != nil, "applied", applied, "bytes", len(data))
	c.JSON(http.StatusOK, gin.H{"draft": draft, "found": fields != nil, "applied": applied})
}

func draftFromForm(c *gin.Context) (asset.Draft, error) {
	var d asset.Draft
	if v := strings.TrimSpace(c.PostForm("ticker")); v != "" {
		t := asset.NormalizeTicker(v)
		d.Ticker = &t
	}
	if v := strings.TrimSpace(c.PostForm("name")); v != "" {
		d.Name = &v
	}
	for _, f := range []struct {
		key string
		dst **float64
	}{{"quantity", &d.Quantity}, {"avgPrice", &d.AvgPrice}} {
		v := strings.TrimSpace(c.PostForm(f.key))
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return d, fmt.Errorf("invalid %s %q", f.key, v)
		}
		*f.dst = &n
	}
	d.Source = asset.Source(c.PostForm("source"))
	return d, nil
}

func (s *Server) getChat(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(s.deps.Chat.History()), "state": s.deps.Chat.State()})
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

// sendChat streams the assistant message as server-sent events. Errors
// that happen before the first update are returned as JSON.
func (s *Server) sendChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	started := false
	_, err := s.deps.Chat.Send(c.Request.Context(), req.Message, func(m chat.Message) {
		if !started {
			started = true
			setSSEHeaders(c)
		}
		c.SSEvent("message", m)
		c.Writer.Flush()
	})
	if err != nil && !started {
		respondWithError(c, err)
		return
	}
	if started {
		c.SSEvent("done", gin.H{})
		c.Writer.Flush()
	}
}

// streamEvents forwards bus events until the client disconnects.
func (s *Server) streamEvents(c *gin.Context) {
	ch, cancel := s.deps.Events.Subscribe()
	defer cancel()

	setSSEHeaders(c)
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(string(e.Kind), e)
			c.Writer.Flush()
		}
	}
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
}

func queryLimit(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || n <= 0 || n > 1000 {
		return def
	}
	return n
}

func (s *Server) getHistory(c *gin.Context) {
	if s.deps.Journal == nil {
		c.JSON(http.StatusOK, gin.H{"snapshots": []storage.PortfolioSnapshot{}})
		return
	}
	snaps, err := s.deps.Journal.GetRecentSnapshots(queryLimit(c, 100))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": nonNil(snaps)})
}

func (s *Server) getCalls(c *gin.Context) {
	if s.deps.Journal == nil {
		c.JSON(http.StatusOK, gin.H{"calls": []storage.GatewayCall{}})
		return
	}
	calls, err := s.deps.Journal.GetRecentGatewayCalls(queryLimit(c, 50))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": nonNil(calls)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
