package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"coin-price-etl/models"
	"coin-price-etl/pipeline"
	"coin-price-etl/services"
	"coin-price-etl/storage"
	"coin-price-etl/utils"
)

// Server exposes the in-memory snapshot and the persisted history over HTTP.
// Handlers run concurrently with the pipeline and never block on a cycle.
type Server struct {
	store    storage.Store
	snapshot *pipeline.Snapshot
	cleaner  *services.Cleaner
	logger   *utils.Logger
}

func New(store storage.Store, snapshot *pipeline.Snapshot, logger *utils.Logger) *Server {
	return &Server{
		store:    store,
		snapshot: snapshot,
		cleaner:  services.NewCleaner(logger),
		logger:   logger,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/raw", s.getRaw)
	r.GET("/data", s.getData)
	r.GET("/stats", s.getStats)
	r.POST("/prices", s.postPrices)

	return r
}

// getRaw serves the most recent in-memory extraction snapshot. It never
// touches the store, so it stays responsive while a cycle is persisting.
func (s *Server) getRaw(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot.Get())
}

// getData serves persisted products, optionally filtered to one date via
// ?date=2006-01-02.
func (s *Server) getData(c *gin.Context) {
	var (
		products []*models.Product
		err      error
	)

	if date := c.Query("date"); date != "" {
		if _, parseErr := time.Parse(models.DateFormat, date); parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be formatted as 2006-01-02"})
			return
		}
		products, err = s.store.RawByDate(c.Request.Context(), date)
	} else {
		products, err = s.store.AllRaw(c.Request.Context())
	}

	if err != nil {
		s.storeError(c, err)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	c.JSON(http.StatusOK, products)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.store.AllStats(c.Request.Context())
	if err != nil {
		s.storeError(c, err)
		return
	}
	if stats == nil {
		stats = []*models.Stats{}
	}
	c.JSON(http.StatusOK, stats)
}

// ingestItem mirrors RawItem for the push endpoint; price may arrive as a
// JSON string or number.
type ingestItem struct {
	Title string          `json:"title"`
	Price json.RawMessage `json:"price"`
	Metal string          `json:"metal"`
	Link  string          `json:"link"`
	Image string          `json:"image"`
}

// postPrices accepts externally pushed raw items (one object or an array),
// assigns identifiers and today's date server-side, merges the result into
// the snapshot and persists it. The transform step is not triggered.
func (s *Server) postPrices(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var incoming []ingestItem
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &incoming)
	} else {
		var single ingestItem
		if err = json.Unmarshal(trimmed, &single); err == nil {
			incoming = []ingestItem{single}
		}
	}
	if err != nil || len(incoming) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a raw item object or array"})
		return
	}

	now := time.Now()
	raw := make([]*models.RawItem, 0, len(incoming))
	for _, in := range incoming {
		raw = append(raw, &models.RawItem{
			Title:     in.Title,
			RawPrice:  rawPriceString(in.Price),
			Metal:     in.Metal,
			Link:      in.Link,
			Image:     in.Image,
			Source:    "push",
			ScrapedAt: now,
		})
	}

	date := now.Format(models.DateFormat)
	products, rejected := s.cleaner.Clean(date, raw)
	if len(products) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "no usable records in payload",
			"rejected": rejectionReasons(rejected),
		})
		return
	}

	report, err := s.store.AppendRaw(c.Request.Context(), products)
	if err != nil {
		s.storeError(c, err)
		return
	}

	s.snapshot.Merge(products)
	s.logger.Info("[server] Ingested %d pushed records (%d rejected)",
		report.Written, len(rejected)+len(report.Rejected))

	c.JSON(http.StatusOK, gin.H{
		"accepted": report.Written,
		"rejected": append(rejectionReasons(rejected), rejectionReasons(report.Rejected)...),
	})
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrStoreUnavailable) {
		s.logger.Error("[server] Store unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	s.logger.Error("[server] Store error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func rawPriceString(raw json.RawMessage) string {
	var str string
	if json.Unmarshal(raw, &str) == nil {
		return str
	}
	var num float64
	if json.Unmarshal(raw, &num) == nil {
		return strconv.FormatFloat(num, 'f', -1, 64)
	}
	return ""
}

func rejectionReasons(errs []*models.RecordError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
