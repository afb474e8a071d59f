package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	obslogger "github.com/smallbiznis/mutrapro/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/mutrapro/internal/observability/metrics"
	"github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const compensateTimeout = 5 * time.Second

var allowedAttachmentExt = map[string]struct{}{
	".pdf":      {},
	".mid":      {},
	".midi":     {},
	".musicxml": {},
	".xml":      {},
	".wav":      {},
	".mp3":      {},
	".flac":     {},
	".ogg":      {},
	".aiff":     {},
	".m4a":      {},
	".txt":      {},
}

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Store       domain.RecordStore
	Attachments domain.AttachmentStore `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	store       domain.RecordStore
	attachments domain.AttachmentStore
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("servicerequest.service"),
		genID:       p.GenID,
		store:       p.Store,
		attachments: p.Attachments,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.ServiceRequest, error) {
	if req.CustomerID <= 0 {
		return nil, domain.ErrInvalidCustomer
	}
	serviceType, err := domain.ParseServiceType(req.ServiceType)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	var storedName string
	if req.Attachment != nil {
		storedName, err = s.attachmentName(req.Attachment.Name)
		if err != nil {
			return nil, err
		}
	}

	customer, err := s.store.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrCustomerNotFound
	}

	rec := domain.CreateRecord{
		CustomerID:  req.CustomerID,
		ServiceType: serviceType,
		Title:       title,
		Description: trimOptional(req.Description),
		FileName:    trimOptional(req.FileName),
		DueDate:     req.DueDate,
		Priority:    priority,
	}

	if req.Attachment != nil {
		if s.attachments == nil {
			return nil, fmt.Errorf("attachment store not configured")
		}
		saved, err := s.attachments.Save(ctx, storedName, req.Attachment.Body)
		if err != nil {
			return nil, err
		}
		rec.FileName = &saved
	}

	created, err := s.store.CreateServiceRequest(ctx, rec)
	if err == nil && created == nil {
		err = domain.ErrNotFound
	}
	if err != nil {
		if req.Attachment != nil {
			s.discardAttachment(ctx, *rec.FileName)
		}
		return nil, err
	}

	s.obsMetrics.RecordRequestSubmitted(ctx, string(serviceType))
	obslogger.WithContext(ctx, s.log).Info("service request submitted",
		zap.Int64("request_id", created.ID),
		zap.Int64("customer_id", created.CustomerID),
		zap.String("service_type", string(serviceType)),
	)
	return created, nil
}

// attachmentName builds "<snowflake>_<slug><ext>" for an uploaded file name.
func (s *Service) attachmentName(name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedAttachmentExt[ext]; !ok {
		return "", domain.ErrInvalidAttachment
	}
	stem := slug.Make(strings.TrimSuffix(name, filepath.Ext(name)))
	if stem == "" {
		stem = "attachment"
	}
	if s.genID == nil {
		return "", fmt.Errorf("id generator not configured")
	}
	return fmt.Sprintf("%s_%s%s", s.genID.Generate().String(), stem, ext), nil
}

func (s *Service) discardAttachment(ctx context.Context, name string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	if err := s.attachments.Remove(cleanupCtx, name); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("failed to remove orphaned attachment",
			zap.String("file_name", name),
			zap.Error(err),
		)
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.ServiceRequest, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}
	req, err := s.store.GetServiceRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.ErrNotFound
	}
	return req, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]domain.ServiceRequest, error) {
	if customerID <= 0 {
		return nil, domain.ErrInvalidCustomer
	}
	items, err := s.store.ListServiceRequestsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ServiceRequest{}
	}
	return items, nil
}

func (s *Service) Transition(ctx context.Context, id int64, target string) (*domain.ServiceRequest, error) {
	to, err := domain.ParseStatus(target)
	if err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(current.Status, to) {
		return nil, &domain.InvalidTransitionError{From: current.Status, To: to}
	}

	ok, err := s.store.UpdateServiceRequestStatus(ctx, id, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}

	s.obsMetrics.RecordTransition(ctx, string(current.Status.Canonical()), string(to.Canonical()))
	obslogger.WithContext(ctx, s.log).Info("service request status changed",
		zap.Int64("request_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)),
	)

	updated := *current
	updated.Status = to
	return &updated, nil
}

func (s *Service) SubmitFeedback(ctx context.Context, req domain.SubmitFeedbackRequest) (*domain.Feedback, error) {
	if req.RequestID <= 0 {
		return nil, domain.ErrInvalidID
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, domain.ErrInvalidContent
	}
	feedbackType, err := domain.ParseFeedbackType(req.FeedbackType)
	if err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}

	revision := feedbackType == domain.FeedbackTypeRevision
	statusWritten := false
	if revision {
		switch {
		case current.Status.Canonical() == domain.StatusRevision.Canonical():
		case domain.CanTransition(current.Status, domain.StatusRevision):
			ok, err := s.store.UpdateServiceRequestStatus(ctx, current.ID, domain.StatusRevision)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, domain.ErrNotFound
			}
			statusWritten = true
		default:
			return nil, &domain.InvalidTransitionError{From: current.Status, To: domain.StatusRevision}
		}
	}

	feedback, err := s.store.CreateFeedback(ctx, domain.FeedbackRecord{
		RequestID:      current.ID,
		Content:        content,
		RevisionNeeded: revision,
	})
	if err == nil && feedback == nil {
		err = domain.ErrNotFound
	}
	if err != nil {
		if statusWritten {
			s.compensateStatus(ctx, current)
		}
		return nil, err
	}
	feedback.FeedbackType = feedbackType

	if statusWritten {
		s.obsMetrics.RecordTransition(ctx, string(current.Status.Canonical()), string(domain.StatusRevision.Canonical()))
	}
	s.obsMetrics.RecordFeedback(ctx, string(feedbackType))
	obslogger.WithContext(ctx, s.log).Info("feedback submitted",
		zap.Int64("request_id", current.ID),
		zap.Int64("feedback_id", feedback.ID),
		zap.String("feedback_type", string(feedbackType)),
		zap.Bool("status_written", statusWritten),
	)
	return feedback, nil
}

// compensateStatus restores the status that was overwritten by a revision
// whose feedback record could not be created.
func (s *Service) compensateStatus(ctx context.Context, previous *domain.ServiceRequest) {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	log := obslogger.WithContext(ctx, s.log).With(
		zap.Int64("request_id", previous.ID),
		zap.String("restore_status", previous.Status.WireName()),
	)
	ok, err := s.store.UpdateServiceRequestStatus(compCtx, previous.ID, previous.Status)
	switch {
	case err != nil:
		log.Error("status compensation failed", zap.Error(err))
	case !ok:
		log.Error("status compensation failed", zap.Error(domain.ErrNotFound))
	default:
		log.Warn("status compensated after feedback failure")
	}
}

func (s *Service) ListFeedback(ctx context.Context, requestID int64) ([]domain.Feedback, error) {
	if _, err := s.Get(ctx, requestID); err != nil {
		return nil, err
	}
	items, err := s.store.ListFeedbackByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Feedback{}
	}
	return items, nil
}

func (s *Service) ListFeedbackByCustomer(ctx context.Context, customerID int64) ([]domain.Feedback, error) {
	requests, err := s.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	out := []domain.Feedback{}
	for _, req := range requests {
		items, err := s.store.ListFeedbackByRequest(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
