package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/siherrmann/loregraph"
	"github.com/siherrmann/loregraph/model"
)

// Server exposes a Loregraph over HTTP. It is the consumer of the background
// verification results and keeps the most recent ones for polling.
type Server struct {
	Loregraph *loregraph.Loregraph

	results *resultStore
	done    chan struct{}
	log     *slog.Logger
}

// NewServer starts collecting background results of g. retention bounds the
// number of results kept.
func NewServer(g *loregraph.Loregraph, retention int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Loregraph: g,
		results:   newResultStore(retention),
		done:      make(chan struct{}),
		log:       logger,
	}
	g.Verifier.OnDropped(func(requestID string) {
		s.results.fail(requestID, "result dropped, verification buffer full")
	})
	go s.collect()
	return s
}

// collect drains the result channel until the verifier is closed
func (s *Server) collect() {
	defer close(s.done)
	for async := range s.Loregraph.Results() {
		s.results.deliver(async.RequestID, async.Result)
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/health", s.Health)
	r.POST("/resolve", s.Resolve)
	r.POST("/verify", s.Verify)
	r.GET("/verify/:request_id", s.VerifyResult)
	r.POST("/reindex", s.Reindex)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Serving", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Done is closed once the result collector stopped
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"profiles": s.Loregraph.Profiles(),
	})
}

func (s *Server) Resolve(c *gin.Context) {
	var req loregraph.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if _, err := s.Loregraph.Budgets.Lookup(req.Profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assembled, err := s.Loregraph.ResolveQuery(c.Request.Context(), req)
	if err != nil {
		s.log.Error("Failed to resolve query", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve query"})
		return
	}

	c.JSON(http.StatusOK, assembled)
}

type VerifyRequest struct {
	Tier model.Tier `json:"tier"`
	Text string     `json:"text" binding:"required"`
	// Scope is used as given; without it one is built around Entities
	Scope     *model.VerificationScope `json:"scope,omitempty"`
	Entities  []string                 `json:"entities,omitempty"`
	RequestID string                   `json:"request_id,omitempty"`
}

type VerifyAccepted struct {
	RequestID string                    `json:"request_id"`
	Fast      *model.VerificationResult `json:"fast"`
}

func (s *Server) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Tier == "" {
		req.Tier = model.TierFast
	}

	ctx := c.Request.Context()
	scope := req.Scope
	if scope == nil {
		var err error
		scope, err = s.Loregraph.ScopeFor(ctx, req.Entities)
		if err != nil {
			s.log.Error("Failed to build verification scope", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build verification scope"})
			return
		}
	}

	switch req.Tier {
	case model.TierMedium:
		requestID := req.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}
		fast, err := s.Loregraph.VerifyGeneration(ctx, requestID, req.Text, scope)
		if err != nil {
			s.log.Error("Failed to schedule verification", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to schedule verification"})
			return
		}
		// the result may already be in, expect keeps it
		s.results.expect(requestID)
		c.JSON(http.StatusAccepted, VerifyAccepted{RequestID: requestID, Fast: fast})

	case model.TierFast, model.TierSlow:
		result, err := s.Loregraph.Verify(ctx, req.Tier, req.Text, scope)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown tier " + string(req.Tier)})
	}
}

func (s *Server) VerifyResult(c *gin.Context) {
	requestID := c.Param("request_id")
	e, ok := s.results.get(requestID)
	switch {
	case !ok:
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown request id"})
	case e.failure != "":
		c.JSON(http.StatusOK, gin.H{"request_id": requestID, "status": "failed", "error": e.failure})
	case e.result == nil:
		c.JSON(http.StatusAccepted, gin.H{"request_id": requestID, "status": "pending"})
	default:
		c.JSON(http.StatusOK, gin.H{"request_id": requestID, "status": "done", "result": e.result})
	}
}

type ReindexRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) Reindex(c *gin.Context) {
	var req ReindexRequest
	// an empty body reindexes every entity
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if s.Loregraph.Reindexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No embedder configured"})
		return
	}

	ids, err := loregraph.ParseIDs(req.IDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.Loregraph.Reindex(c.Request.Context(), ids)
	if err != nil {
		s.log.Error("Failed to reindex", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reindex"})
		return
	}
	c.JSON(http.StatusOK, result)
}
