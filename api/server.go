// Package api serves the IndexService over HTTP, answering searches in
// GeoJSON.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	pb "github.com/silenteh/GeoSpatialIndex/proto"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	client  pb.IndexServiceClient
	timeout time.Duration
	log     log.FieldLogger

	mu             sync.RWMutex
	defaultIndexID string // most recently created or loaded index
}

func NewServer(client pb.IndexServiceClient, logger log.FieldLogger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Server{
		client:  client,
		timeout: 30 * time.Second,
		log:     logger.WithField("component", "api"),
	}
}

// UseLatestIndex makes the newest index on the runner the default one.
func (s *Server) UseLatestIndex(ctx context.Context) {
	resp, err := s.client.ListIndexes(ctx, &pb.ListIndexesRequest{})
	if err != nil {
		s.log.WithError(err).Warn("Could not list indexes")
		return
	}
	if len(resp.Indexes) > 0 {
		s.setDefault(resp.Indexes[0].Id)
	}
}

func (s *Server) setDefault(id string) {
	s.mu.Lock()
	s.defaultIndexID = id
	s.mu.Unlock()
}

func (s *Server) defaultIndex() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultIndexID
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("Handled request")
	}
}

// Router returns the HTTP handler for the API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), cors())

	r.GET("/api/indexes", s.handleListIndexes)
	r.POST("/api/indexes", s.handleCreateIndex)
	r.POST("/api/indexes/:id/load", s.handleLoadIndex)
	r.DELETE("/api/indexes/:id", s.handleDropIndex)
	r.POST("/api/indexes/:id/records", s.handleInsert)
	r.GET("/api/indexes/:id/search", func(c *gin.Context) {
		s.handleSearch(c, c.Param("id"))
	})

	// Searches the most recently created or loaded index
	r.GET("/api/search", func(c *gin.Context) {
		id := s.defaultIndex()
		if id == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "No indexes available"})
			return
		}
		s.handleSearch(c, id)
	})

	return r
}

// writeError maps a gRPC status to an HTTP error response.
func (s *Server) writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch status.Code(err) {
	case codes.NotFound:
		code = http.StatusNotFound
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.Unavailable:
		code = http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		code = http.StatusGatewayTimeout
	case codes.Canceled:
		code = 499
	}
	if code >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	msg := err.Error()
	if st, ok := status.FromError(err); ok {
		msg = st.Message()
	}
	c.JSON(code, gin.H{"error": msg})
}

func (s *Server) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

type IndexInfo struct {
	Id         string `json:"id"`
	NumRecords int    `json:"numRecords"`
	MaxEntries int    `json:"maxEntries"`
	Height     int    `json:"height,omitempty"`
	Timestamp  string `json:"timestamp"`
	FileSize   int64  `json:"fileSize"`
	Size       string `json:"size"`
	Loaded     bool   `json:"loaded"`
}

func toIndexInfo(info *pb.IndexInfo) IndexInfo {
	return IndexInfo{
		Id:         info.Id,
		NumRecords: int(info.NumRecords),
		MaxEntries: int(info.MaxEntries),
		Height:     int(info.Height),
		Timestamp:  info.Timestamp,
		FileSize:   info.FileSize,
		Size:       formatFileSize(info.FileSize),
		Loaded:     info.Loaded,
	}
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func (s *Server) handleListIndexes(c *gin.Context) {
	ctx, cancel := s.context(c)
	defer cancel()

	resp, err := s.client.ListIndexes(ctx, &pb.ListIndexesRequest{})
	if err != nil {
		s.writeError(c, err)
		return
	}
	indexes := make([]IndexInfo, len(resp.Indexes))
	for i, info := range resp.Indexes {
		indexes[i] = toIndexInfo(info)
	}
	c.JSON(http.StatusOK, indexes)
}

func (s *Server) handleCreateIndex(c *gin.Context) {
	var req struct {
		NumRecords int    `json:"numRecords"`
		MaxEntries int    `json:"maxEntries"`
		Seed       int64  `json:"seed"`
		Region     string `json:"region"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx, cancel := s.context(c)
	defer cancel()
	resp, err := s.client.CreateIndex(ctx, &pb.CreateIndexRequest{
		NumRecords: int32(req.NumRecords),
		MaxEntries: int32(req.MaxEntries),
		Seed:       req.Seed,
		Region:     req.Region,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.setDefault(resp.Index.Id)
	c.JSON(http.StatusOK, toIndexInfo(resp.Index))
}

func (s *Server) handleLoadIndex(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := s.context(c)
	defer cancel()

	resp, err := s.client.LoadIndex(ctx, &pb.LoadIndexRequest{IndexId: id})
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.setDefault(id)
	c.JSON(http.StatusOK, gin.H{
		"message":   "Index loaded successfully",
		"indexInfo": toIndexInfo(resp.Index),
	})
}

func (s *Server) handleDropIndex(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := s.context(c)
	defer cancel()

	if _, err := s.client.DropIndex(ctx, &pb.DropIndexRequest{IndexId: id}); err != nil {
		s.writeError(c, err)
		return
	}

	s.mu.Lock()
	if s.defaultIndexID == id {
		s.defaultIndexID = ""
	}
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleInsert(c *gin.Context) {
	var req struct {
		Records []*pb.Record `json:"records"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx, cancel := s.context(c)
	defer cancel()
	resp, err := s.client.Insert(ctx, &pb.InsertRequest{IndexId: c.Param("id"), Records: req.Records})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"inserted":   resp.Inserted,
		"numRecords": resp.NumRecords,
	})
}

func getCoordsFromQuery(c *gin.Context) (float64, float64, error) {
	x, err := strconv.ParseFloat(c.Query("x"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x parameter")
	}
	y, err := strconv.ParseFloat(c.Query("y"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y parameter")
	}
	return x, y, nil
}

func (s *Server) handleSearch(c *gin.Context, id string) {
	x, y, err := getCoordsFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := s.context(c)
	defer cancel()
	resp, err := s.client.Search(ctx, &pb.SearchRequest{IndexId: id, X: x, Y: y})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toFeatureCollection(resp.Records))
}
