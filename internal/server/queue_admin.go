package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/orderguard/orderguard/internal/queue"
)

type deadJobResponse struct {
	ID         string    `json:"id"`
	Queue      string    `json:"queue"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error,omitempty"`
	ExpireAt   time.Time `json:"expire_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Server) ListDeadJobs(c *gin.Context) {
	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	jobs, err := s.inspector.ListDead(c.Request.Context(), queue.OrdersCreateQueue, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]deadJobResponse, 0, len(jobs))
	for _, job := range jobs {
		item := deadJobResponse{
			ID:         job.ID.String(),
			Queue:      job.Queue,
			RetryCount: job.RetryCount,
			ExpireAt:   job.ExpireAt,
			CreatedAt:  job.CreatedAt,
			UpdatedAt:  job.UpdatedAt,
		}
		if job.LastError != nil {
			item.LastError = *job.LastError
		}
		resp = append(resp, item)
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RequeueDeadJob(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.inspector.Requeue(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "requeued"})
}
