package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"breakbot/internal/journal"

	"github.com/gin-gonic/gin"
)

func (s *Server) root(c *gin.Context) {
	c.String(http.StatusOK, "alive")
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"trading": s.opts.Engine.TradingEnabled(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Engine.Status())
}

func (s *Server) pause(c *gin.Context) {
	changed := s.opts.Engine.SetTrading(false)
	c.JSON(http.StatusOK, gin.H{"trading": false, "changed": changed})
}

func (s *Server) resume(c *gin.Context) {
	changed := s.opts.Engine.SetTrading(true)
	c.JSON(http.StatusOK, gin.H{"trading": true, "changed": changed})
}

func (s *Server) trades(c *gin.Context) {
	limit := defaultTradesLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit должен быть положительным числом"})
			return
		}
		limit = min(n, maxTradesLimit)
	}

	if s.opts.Journal == nil {
		c.JSON(http.StatusOK, []journal.Record{})
		return
	}
	records, err := s.opts.Journal.LastN(limit)
	if err != nil {
		s.logEntry().WithError(err).Warn("Не удалось прочитать журнал сделок.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "журнал недоступен"})
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	c.JSON(http.StatusOK, records)
}
