package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"game-price-tracker/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// PriceSource exposes the rebuilt artifact.
type PriceSource interface {
	Load() (models.PriceData, error)
	ModTime() (time.Time, error)
}

// SnapshotReader reads archived per-run snapshots.
type SnapshotReader interface {
	History(ctx context.Context, key string, limit int) ([]models.PriceSnapshot, error)
}

type APIHandler struct {
	prices   PriceSource
	archive  SnapshotReader
	poll     time.Duration
	upgrader websocket.Upgrader
}

// NewAPIHandler serves prices from the artifact. archive may be nil.
func NewAPIHandler(prices PriceSource, archive SnapshotReader, poll time.Duration) *APIHandler {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &APIHandler{
		prices:  prices,
		archive: archive,
		poll:    poll,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// NewRouter builds the HTTP surface: health, price routes and the change feed.
func NewRouter(h *APIHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", h.PriceFeed)
	SetupRoutes(r.Group("/api/v1"), h)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func SetupRoutes(r *gin.RouterGroup, h *APIHandler) {
	prices := r.Group("/prices")
	{
		prices.GET("", h.ListPrices)
		prices.GET("/:key", h.GetPrice)
		prices.GET("/:key/snapshots", h.GetSnapshots)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// ListPrices returns the whole aggregate.
// GET /api/v1/prices
func (h *APIHandler) ListPrices(c *gin.Context) {
	data, err := h.prices.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

// GET /api/v1/prices/:key
func (h *APIHandler) GetPrice(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	data, err := h.prices.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	entry, ok := data[key]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown game key", "key": key})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetSnapshots lists archived runs for one title, oldest first.
// GET /api/v1/prices/:key/snapshots?limit=30
func (h *APIHandler) GetSnapshots(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot archive not configured"})
		return
	}
	key := strings.TrimSpace(c.Param("key"))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	rows, err := h.archive.History(c.Request.Context(), key, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if rows == nil {
		rows = []models.PriceSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "data": rows})
}

type feedMessage struct {
	Type string           `json:"type"`
	Data models.PriceData `json:"data"`
}

// PriceFeed pushes the aggregate on connect and after every artifact rewrite.
// GET /ws
func (h *APIHandler) PriceFeed(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// the client never sends anything meaningful; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last, _ := h.prices.ModTime()
	if err := h.push(conn); err != nil {
		return
	}

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			mt, err := h.prices.ModTime()
			if err != nil || mt.Equal(last) {
				continue
			}
			last = mt
			if err := h.push(conn); err != nil {
				return
			}
		}
	}
}

func (h *APIHandler) push(conn *websocket.Conn) error {
	data, err := h.prices.Load()
	if err != nil {
		log.Printf("price feed: %v", err)
		return conn.WriteJSON(gin.H{"type": "error", "error": err.Error()})
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(feedMessage{Type: "prices", Data: data})
}
