package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/mutrapro/internal/observability/context"
	srdomain "github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
)

type submitRequestBody struct {
	CustomerID  int64      `json:"customer_id"`
	ServiceType string     `json:"service_type"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority"`
	FileName    *string    `json:"file_name"`
}

type transitionBody struct {
	Status string `json:"status"`
}

type feedbackBody struct {
	RequestID    int64  `json:"request_id"`
	Content      string `json:"content"`
	FeedbackType string `json:"feedback_type"`
}

// SubmitRequest accepts JSON, or multipart form fields with an optional
// "file" attachment.
func (s *Server) SubmitRequest(c *gin.Context) {
	var (
		req srdomain.SubmitRequest
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err = bindMultipartSubmit(c)
	} else {
		var body submitRequestBody
		if bindErr := c.ShouldBindJSON(&body); bindErr != nil {
			err = invalidRequestError()
		}
		req = srdomain.SubmitRequest{
			CustomerID:  body.CustomerID,
			ServiceType: body.ServiceType,
			Title:       body.Title,
			Description: body.Description,
			DueDate:     body.DueDate,
			Priority:    body.Priority,
			FileName:    body.FileName,
		}
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if req.Attachment != nil {
		if closer, ok := req.Attachment.Body.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	}

	ctx := obscontext.WithCustomerID(c.Request.Context(), formatID(req.CustomerID))
	resp, err := s.requestSvc.Submit(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func bindMultipartSubmit(c *gin.Context) (srdomain.SubmitRequest, error) {
	customerID, err := parseOptionalInt64(c.PostForm("customer_id"))
	if err != nil {
		return srdomain.SubmitRequest{}, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id")
	}
	dueDate, err := parseOptionalTime(c.PostForm("due_date"))
	if err != nil {
		return srdomain.SubmitRequest{}, newValidationError("due_date", "invalid_due_date", "invalid due_date")
	}

	req := srdomain.SubmitRequest{
		CustomerID:  customerID,
		ServiceType: c.PostForm("service_type"),
		Title:       c.PostForm("title"),
		Description: optionalString(c.PostForm("description")),
		DueDate:     dueDate,
		Priority:    c.PostForm("priority"),
	}

	header, err := c.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			return req, nil
		}
		return srdomain.SubmitRequest{}, invalidRequestError()
	}
	file, err := header.Open()
	if err != nil {
		return srdomain.SubmitRequest{}, invalidRequestError()
	}
	req.Attachment = &srdomain.Attachment{Name: header.Filename, Body: file}
	return req, nil
}

func (s *Server) GetRequestByID(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp, err := s.requestSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRequestsByCustomer(c *gin.Context) {
	customerID, err := pathID(c, "customer_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ctx := obscontext.WithCustomerID(c.Request.Context(), formatID(customerID))
	items, err := s.requestSvc.ListByCustomer(ctx, customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(s, c, items)
}

func (s *Server) TransitionRequest(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.requestSvc.Transition(c.Request.Context(), id, body.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// SubmitFeedback takes JSON or form fields, the original clients post forms.
func (s *Server) SubmitFeedback(c *gin.Context) {
	var body feedbackBody
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	} else {
		requestID, err := parseOptionalInt64(c.PostForm("request_id"))
		if err != nil {
			AbortWithError(c, newValidationError("request_id", "invalid_request_id", "invalid request_id"))
			return
		}
		body = feedbackBody{
			RequestID:    requestID,
			Content:      c.PostForm("content"),
			FeedbackType: c.PostForm("feedback_type"),
		}
	}

	resp, err := s.requestSvc.SubmitFeedback(c.Request.Context(), srdomain.SubmitFeedbackRequest{
		RequestID:    body.RequestID,
		Content:      body.Content,
		FeedbackType: body.FeedbackType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListFeedbackByRequest(c *gin.Context) {
	requestID, err := pathID(c, "request_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.requestSvc.ListFeedback(c.Request.Context(), requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(s, c, items)
}

func (s *Server) ListFeedbackByCustomer(c *gin.Context) {
	customerID, err := pathID(c, "customer_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.requestSvc.ListFeedbackByCustomer(c.Request.Context(), customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(s, c, items)
}
