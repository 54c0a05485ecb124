package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"emitenwatch/internal/domain"
)

// MockAnalysisJobRepository is a mock implementation of AnalysisJobRepository for testing
type MockAnalysisJobRepository struct {
	mock.Mock
}

func (m *MockAnalysisJobRepository) Create(ctx context.Context, job *domain.AnalysisJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockAnalysisJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, result, errorMessage string) error {
	args := m.Called(ctx, id, status, result, errorMessage)
	return args.Error(0)
}

func (m *MockAnalysisJobRepository) GetLatest(ctx context.Context, symbol string) (*domain.AnalysisJob, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalysisJob), args.Error(1)
}

func (m *MockAnalysisJobRepository) ListBySymbol(ctx context.Context, symbol string) ([]*domain.AnalysisJob, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AnalysisJob), args.Error(1)
}

// MockAnalyzer is a mock implementation of Analyzer for testing
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, symbol, analysisContext string) (string, error) {
	args := m.Called(ctx, symbol, analysisContext)
	return args.String(0), args.Error(1)
}

func TestCreate_RejectsEmptySymbol(t *testing.T) {
	ctx := context.Background()
	jobs := new(MockAnalysisJobRepository)
	tracker := NewTracker(jobs, new(MockAnalyzer))

	_, err := tracker.Create(ctx, "   ", "")

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	jobs.AssertNotCalled(t, "GetLatest")
}

func TestCreate_RejectsInFlightJob(t *testing.T) {
	ctx := context.Background()
	jobs := new(MockAnalysisJobRepository)
	tracker := NewTracker(jobs, new(MockAnalyzer))

	jobs.On("GetLatest", ctx, "BBCA").Return(&domain.AnalysisJob{
		ID:     uuid.New(),
		Symbol: "BBCA",
		Status: domain.JobStatusProcessing,
	}, nil)

	_, err := tracker.Create(ctx, "bbca", "")

	assert.ErrorIs(t, err, domain.ErrJobInFlight)
	jobs.AssertNotCalled(t, "Create")
}

func TestCreate_AllowedAfterTerminalJob(t *testing.T) {
	ctx := context.Background()
	jobs := new(MockAnalysisJobRepository)
	analyzer := new(MockAnalyzer)
	tracker := NewTracker(jobs, analyzer)

	jobs.On("GetLatest", ctx, "BBCA").Return(&domain.AnalysisJob{
		ID:     uuid.New(),
		Symbol: "BBCA",
		Status: domain.JobStatusCompleted,
	}, nil)
	jobs.On("Create", ctx, mock.AnythingOfType("*domain.AnalysisJob")).Return(nil)
	jobs.On("UpdateStatus", mock.Anything, mock.Anything, domain.JobStatusProcessing, "", "").Return(nil)
	analyzer.On("Analyze", mock.Anything, "BBCA", "").Return(`{"verdict":"hold"}`, nil)
	jobs.On("UpdateStatus", mock.Anything, mock.Anything, domain.JobStatusCompleted, `{"verdict":"hold"}`, "").Return(nil)

	job, err := tracker.Create(ctx, "BBCA", "")
	tracker.Wait()

	assert.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	jobs.AssertExpectations(t)
	analyzer.AssertExpectations(t)
}

func TestCreate_RunnerRecordsCompletion(t *testing.T) {
	ctx := context.Background()
	jobs := new(MockAnalysisJobRepository)
	analyzer := new(MockAnalyzer)
	tracker := NewTracker(jobs, analyzer)

	jobs.On("GetLatest", ctx, "TLKM").Return(nil, nil)
	jobs.On("Create", ctx, mock.AnythingOfType("*domain.AnalysisJob")).Return(nil)
	jobs.On("UpdateStatus", mock.Anything, mock.Anything, domain.JobStatusProcessing, "", "").Return(nil)
	analyzer.On("Analyze", mock.Anything, "TLKM", "earnings recap").Return("analysis body", nil)
	jobs.On("UpdateStatus", mock.Anything, mock.Anything, domain.JobStatusCompleted, "analysis body", "").Return(nil)

	job, err := tracker.Create(ctx, "tlkm", "earnings recap")
	tracker.Wait()

	assert.NoError(t, err)
	assert.Equal(t, "TLKM", job.Symbol)
	assert.NotEqual(t, uuid.Nil, job.ID)
	jobs.AssertExpectations(t)
}

func TestCreate_RunnerRecordsAnalyzerFailure(t *testing.T) {
	ctx := context.Background()
	jobs := new(MockAnalysisJobRepository)
	analyzer := new(MockAnalyzer)
	tracker := NewTracker(jobs, analyzer)

	jobs.On("GetLatest", ctx, "GOTO").Return(nil, nil)
	jobs.On("Create", ctx, mock.AnythingOfType("*domain.AnalysisJob")).Return(nil)
	jobs.On("UpdateStatus", mock.Anything, mock.Anything, domain.JobStatusProcessing, "", "").Return(nil)
	analyzer.On("Analyze", mock.Anything, "GOTO", "").Return("", errors.New("provider rejected request"))
	jobs.On("UpdateStatus", mock.Anything, mock.Anything, domain.JobStatusError, "", "provider rejected request").Return(nil)

	_, err := tracker.Create(ctx, "GOTO", "")
	tracker.Wait()

	assert.NoError(t, err)
	jobs.AssertExpectations(t)
}

func TestStatus_IdleWhenNoRecords(t *testing.T) {
	ctx := context.Background()
	jobs := new(MockAnalysisJobRepository)
	tracker := NewTracker(jobs, new(MockAnalyzer))

	jobs.On("GetLatest", ctx, "BBCA").Return(nil, nil)

	status, job, err := tracker.Status(ctx, "bbca")

	assert.NoError(t, err)
	assert.Equal(t, domain.JobStatusIdle, status)
	assert.Nil(t, job)
}

func TestStatus_ReflectsLatestRecord(t *testing.T) {
	ctx := context.Background()
	jobs := new(MockAnalysisJobRepository)
	tracker := NewTracker(jobs, new(MockAnalyzer))

	latest := &domain.AnalysisJob{
		ID:        uuid.New(),
		Symbol:    "BBCA",
		Status:    domain.JobStatusCompleted,
		Result:    "done",
		CreatedAt: time.Now(),
	}
	jobs.On("GetLatest", ctx, "BBCA").Return(latest, nil)

	status, job, err := tracker.Status(ctx, "BBCA")

	assert.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, status)
	assert.Equal(t, latest, job)
}

func TestHistory_UppercasesSymbol(t *testing.T) {
	ctx := context.Background()
	jobs := new(MockAnalysisJobRepository)
	tracker := NewTracker(jobs, new(MockAnalyzer))

	jobs.On("ListBySymbol", ctx, "BBCA").Return([]*domain.AnalysisJob{}, nil)

	_, err := tracker.History(ctx, " bbca ")

	assert.NoError(t, err)
	jobs.AssertExpectations(t)
}
