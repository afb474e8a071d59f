package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/mutrapro/internal/customer/domain"
	"github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errUpstream = errors.New("upstream_503")

type fakeStore struct {
	mu        sync.Mutex
	customers map[int64]bool
	requests  map[int64]*domain.ServiceRequest
	feedback  []domain.Feedback
	nextID    int64

	statusWrites []domain.Status
	createErr    error
	feedbackErr  error
	lastCreate   domain.CreateRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: map[int64]bool{1: true},
		requests:  map[int64]*domain.ServiceRequest{},
		nextID:    100,
	}
}

func (f *fakeStore) put(req domain.ServiceRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[req.ID] = &req
}

func (f *fakeStore) status(id int64) domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id].Status
}

func (f *fakeStore) GetCustomer(_ context.Context, id int64) (*customerdomain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.customers[id] {
		return nil, nil
	}
	return &customerdomain.Customer{ID: id, Name: "Lan"}, nil
}

func (f *fakeStore) CreateServiceRequest(_ context.Context, rec domain.CreateRecord) (*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreate = rec
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	req := &domain.ServiceRequest{
		ID:          f.nextID,
		CustomerID:  rec.CustomerID,
		ServiceType: rec.ServiceType,
		Title:       rec.Title,
		Description: rec.Description,
		FileName:    rec.FileName,
		Status:      domain.StatusRequested,
		Priority:    rec.Priority,
	}
	f.requests[req.ID] = req
	out := *req
	return &out, nil
}

func (f *fakeStore) GetServiceRequest(_ context.Context, id int64) (*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	out := *req
	return &out, nil
}

func (f *fakeStore) ListServiceRequestsByCustomer(_ context.Context, customerID int64) ([]domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ServiceRequest
	for _, req := range f.requests {
		if req.CustomerID == customerID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateServiceRequestStatus(_ context.Context, id int64, status domain.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return false, nil
	}
	req.Status = status
	f.statusWrites = append(f.statusWrites, status)
	return true, nil
}

func (f *fakeStore) CreateFeedback(_ context.Context, rec domain.FeedbackRecord) (*domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feedbackErr != nil {
		return nil, f.feedbackErr
	}
	f.nextID++
	fb := domain.Feedback{
		ID:             f.nextID,
		RequestID:      rec.RequestID,
		Content:        rec.Content,
		RevisionNeeded: rec.RevisionNeeded,
	}
	f.feedback = append(f.feedback, fb)
	return &fb, nil
}

func (f *fakeStore) ListFeedbackByRequest(_ context.Context, requestID int64) ([]domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Feedback
	for _, fb := range f.feedback {
		if fb.RequestID == requestID {
			out = append(out, fb)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, store domain.RecordStore, attachments domain.AttachmentStore) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{
		Log:         zap.NewNop(),
		GenID:       node,
		Store:       store,
		Attachments: attachments,
	})
}

func TestSubmitValidatesInput(t *testing.T) {
	svc := newTestService(t, newFakeStore(), nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, domain.SubmitRequest{CustomerID: 1, ServiceType: "mixing", Title: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidServiceType)

	_, err = svc.Submit(ctx, domain.SubmitRequest{CustomerID: 1, ServiceType: "transcription", Title: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	_, err = svc.Submit(ctx, domain.SubmitRequest{CustomerID: 1, ServiceType: "transcription", Title: "x", Priority: "asap"})
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)

	_, err = svc.Submit(ctx, domain.SubmitRequest{
		CustomerID:  1,
		ServiceType: "transcription",
		Title:       "x",
		Attachment:  &domain.Attachment{Name: "virus.exe", Body: strings.NewReader("MZ")},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAttachment)
	assert.True(t, domain.IsValidationError(err))
}

func TestSubmitUnknownCustomer(t *testing.T) {
	_, err := newTestService(t, newFakeStore(), nil).Submit(context.Background(), domain.SubmitRequest{
		CustomerID:  42,
		ServiceType: "arrangement",
		Title:       "Song",
	})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestSubmitCreatesRequestedWithDefaults(t *testing.T) {
	store := newFakeStore()
	req, err := newTestService(t, store, nil).Submit(context.Background(), domain.SubmitRequest{
		CustomerID:  1,
		ServiceType: "Transcription",
		Title:       " Moonlight ",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRequested, req.Status)
	assert.Equal(t, "Moonlight", req.Title)
	assert.Equal(t, domain.DefaultPriority, store.lastCreate.Priority)
	assert.Equal(t, domain.ServiceTypeTranscription, store.lastCreate.ServiceType)
}

func TestSubmitStoresAttachment(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	svc := newTestService(t, store, NewDiskAttachments(dir))

	req, err := svc.Submit(context.Background(), domain.SubmitRequest{
		CustomerID:  1,
		ServiceType: "transcription",
		Title:       "Demo",
		Attachment:  &domain.Attachment{Name: "My Song.MP3", Body: strings.NewReader("ID3")},
	})
	require.NoError(t, err)
	require.NotNil(t, req.FileName)
	assert.Regexp(t, regexp.MustCompile(`^\d+_my-song\.mp3$`), *req.FileName)

	data, err := os.ReadFile(filepath.Join(dir, *req.FileName))
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(data))
}

func TestSubmitRemovesAttachmentWhenCreateFails(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	store.createErr = errUpstream
	svc := newTestService(t, store, NewDiskAttachments(dir))

	_, err := svc.Submit(context.Background(), domain.SubmitRequest{
		CustomerID:  1,
		ServiceType: "recording",
		Title:       "Demo",
		Attachment:  &domain.Attachment{Name: "take.wav", Body: strings.NewReader("RIFF")},
	})
	assert.ErrorIs(t, err, errUpstream)
	require.NotNil(t, store.lastCreate.FileName)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransition(t *testing.T) {
	store := newFakeStore()
	store.put(domain.ServiceRequest{ID: 1, CustomerID: 1, Status: domain.StatusRequested})
	store.put(domain.ServiceRequest{ID: 2, CustomerID: 1, Status: domain.StatusCompleted})
	store.put(domain.ServiceRequest{ID: 3, CustomerID: 1, Status: domain.StatusSubmitted})
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	updated, err := svc.Transition(ctx, 1, "PENDING_REVIEW")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, updated.Status)
	assert.Equal(t, domain.StatusPendingReview, store.status(1))

	_, err = svc.Transition(ctx, 2, "cancelled")
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StatusCompleted, invalid.From)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Transition(ctx, 1, "pending_review")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Transition(ctx, 1, "on_hold")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.Transition(ctx, 404, "cancelled")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// a legacy source and a legacy target keep their own spelling
	updated, err = svc.Transition(ctx, 3, "in_progress")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	assert.Equal(t, domain.StatusInProgress, store.status(3))
}

func TestRevisionFeedbackWritesStatusThenFeedback(t *testing.T) {
	store := newFakeStore()
	store.put(domain.ServiceRequest{ID: 5, CustomerID: 1, Status: domain.StatusRequested})
	svc := newTestService(t, store, nil)

	fb, err := svc.SubmitFeedback(context.Background(), domain.SubmitFeedbackRequest{
		RequestID: 5,
		Content:   "tempo is off in bar 12",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FeedbackTypeRevision, fb.FeedbackType)
	assert.True(t, fb.RevisionNeeded)
	assert.Equal(t, domain.StatusRevision, store.status(5))
	assert.Equal(t, []domain.Status{domain.StatusRevision}, store.statusWrites)
}

func TestRevisionFeedbackOnPendingReviewSkipsStatusWrite(t *testing.T) {
	store := newFakeStore()
	store.put(domain.ServiceRequest{ID: 6, CustomerID: 1, Status: domain.StatusAssigned})
	svc := newTestService(t, store, nil)

	_, err := svc.SubmitFeedback(context.Background(), domain.SubmitFeedbackRequest{
		RequestID:    6,
		Content:      "again please",
		FeedbackType: "revision",
	})
	require.NoError(t, err)
	assert.Empty(t, store.statusWrites)
	assert.Equal(t, domain.StatusAssigned, store.status(6))
}

func TestRevisionFeedbackRejectedFromLateStates(t *testing.T) {
	store := newFakeStore()
	store.put(domain.ServiceRequest{ID: 7, CustomerID: 1, Status: domain.StatusPendingMeetingConfirmation})
	svc := newTestService(t, store, nil)

	_, err := svc.SubmitFeedback(context.Background(), domain.SubmitFeedbackRequest{RequestID: 7, Content: "redo"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Empty(t, store.statusWrites)
	assert.Empty(t, store.feedback)
}

func TestRevisionFeedbackCompensatesStatus(t *testing.T) {
	store := newFakeStore()
	store.put(domain.ServiceRequest{ID: 8, CustomerID: 1, Status: domain.StatusPending})
	store.feedbackErr = errUpstream
	svc := newTestService(t, store, nil)

	_, err := svc.SubmitFeedback(context.Background(), domain.SubmitFeedbackRequest{RequestID: 8, Content: "redo"})
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, []domain.Status{domain.StatusRevision, domain.StatusPending}, store.statusWrites)
	assert.Equal(t, domain.StatusPending, store.status(8))
}

func TestGeneralFeedbackLeavesStatus(t *testing.T) {
	store := newFakeStore()
	store.put(domain.ServiceRequest{ID: 9, CustomerID: 1, Status: domain.StatusCompleted})
	svc := newTestService(t, store, nil)

	fb, err := svc.SubmitFeedback(context.Background(), domain.SubmitFeedbackRequest{
		RequestID:    9,
		Content:      "lovely work",
		FeedbackType: "general",
	})
	require.NoError(t, err)
	assert.False(t, fb.RevisionNeeded)
	assert.Equal(t, domain.FeedbackTypeGeneral, fb.FeedbackType)
	assert.Empty(t, store.statusWrites)

	_, err = svc.SubmitFeedback(context.Background(), domain.SubmitFeedbackRequest{RequestID: 9, Content: "x", FeedbackType: "praise"})
	assert.ErrorIs(t, err, domain.ErrInvalidFeedbackType)

	_, err = svc.SubmitFeedback(context.Background(), domain.SubmitFeedbackRequest{RequestID: 404, Content: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListFeedbackByCustomerAggregates(t *testing.T) {
	store := newFakeStore()
	store.put(domain.ServiceRequest{ID: 10, CustomerID: 1, Status: domain.StatusCompleted})
	store.put(domain.ServiceRequest{ID: 11, CustomerID: 1, Status: domain.StatusCompleted})
	store.put(domain.ServiceRequest{ID: 12, CustomerID: 2, Status: domain.StatusCompleted})
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	for _, id := range []int64{10, 11, 12} {
		_, err := svc.SubmitFeedback(ctx, domain.SubmitFeedbackRequest{RequestID: id, Content: "ok", FeedbackType: "general"})
		require.NoError(t, err)
	}

	items, err := svc.ListFeedbackByCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	forRequest, err := svc.ListFeedback(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, forRequest, 1)

	none, err := svc.ListByCustomer(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
