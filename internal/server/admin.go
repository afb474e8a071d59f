package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
)

func (s *Server) ListReconciliationTasks(c *gin.Context) {
	if s.taskSvc == nil {
		AbortWithError(c, ErrUnavailable)
		return
	}

	status, err := paymentdomain.ParseTaskStatus(c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	kind := paymentdomain.TaskKind(strings.ToLower(strings.TrimSpace(c.Query("kind"))))
	switch kind {
	case "", paymentdomain.TaskKindMarkPaid, paymentdomain.TaskKindAppendTransaction:
	default:
		AbortWithError(c, newValidationError("kind", "invalid_kind", "invalid kind"))
		return
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	tasks, err := s.taskSvc.ListTasks(c.Request.Context(), paymentdomain.ListTaskFilter{
		Status: status,
		Kind:   kind,
		Limit:  limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if tasks == nil {
		tasks = []*paymentdomain.ReconciliationTask{}
	}

	c.JSON(http.StatusOK, gin.H{"data": tasks})
}

func (s *Server) RequeueReconciliationTask(c *gin.Context) {
	if s.taskSvc == nil {
		AbortWithError(c, ErrUnavailable)
		return
	}
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}
	if err := s.taskSvc.RequeueTask(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id.String(), "status": paymentdomain.TaskStatusPending}})
}
