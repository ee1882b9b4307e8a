package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
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

type Portfolio interface {
	View() portfolio.View
	News() []ai.NewsItem
	AddAsset(ctx context.Context, in asset.Input) (asset.Record, error)
	RefreshMarketData(ctx context.Context) (portfolio.RefreshResult, error)
	RefreshNews(ctx context.Context) ([]ai.NewsItem, error)
	SetExchangeRate(rate float64) error
}

type Scanner interface {
	ExtractTradeFields(ctx context.Context, image []byte, mimeType string) (*ai.TradeFields, error)
}

type Chat interface {
	Send(ctx context.Context, text string, onUpdate func(chat.Message)) (chat.Message, error)
	History() []chat.Message
	State() chat.State
}

type Subscriber interface {
	Subscribe() (<-chan events.Event, func())
}

// Journal is optional; without it the history endpoints return empty lists.
type Journal interface {
	GetRecentSnapshots(limit int) ([]storage.PortfolioSnapshot, error)
	GetRecentGatewayCalls(limit int) ([]storage.GatewayCall, error)
}

type Deps struct {
	Portfolio Portfolio
	Scanner   Scanner
	Chat      Chat
	Events    Subscriber
	Journal   Journal
}

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	deps       Deps
	port       int
	logger     *logger.Logger
}

func NewServer(deps Deps, port int, log *logger.Logger) *Server {
	s := &Server{
		deps:   deps,
		port:   port,
		logger: log,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")))

	r.GET("/", s.handleDashboard)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	api.GET("/portfolio", s.getPortfolio)
	api.POST("/assets", s.addAsset)
	api.POST("/refresh", s.refresh)
	api.PUT("/exchange-rate", s.setExchangeRate)
	api.GET("/news", s.getNews)
	api.POST("/news/refresh", s.refreshNews)
	api.POST("/receipts", s.scanReceipt)
	api.GET("/chat", s.getChat)
	api.POST("/chat", s.sendChat)
	api.GET("/events", s.streamEvents)
	api.GET("/history", s.getHistory)
	api.GET("/calls", s.getCalls)

	s.engine = r
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: chat replies and the event feed are long-lived streams.
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
