package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rentflow-backend/internal/jobs"
	"rentflow-backend/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Trigger(ctx context.Context, name jobs.SweepName) (jobs.SweepReport, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(jobs.SweepReport), args.Error(1)
}

func (m *MockScheduler) Entries() []scheduler.EntryInfo {
	return m.Called().Get(0).([]scheduler.EntryInfo)
}

func (m *MockScheduler) IsRunning() bool {
	return m.Called().Bool(0)
}

func TestSweepHandler_HandleTrigger(t *testing.T) {
	started := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		s := new(MockScheduler)
		s.On("Trigger", mock.Anything, jobs.SweepOverdue).Return(jobs.SweepReport{
			Sweep:      jobs.SweepOverdue,
			RunID:      "abc",
			StartedAt:  started,
			Candidates: 4,
			Applied:    2,
			Skipped:    1,
			Failed:     1,
			Duration:   1500 * time.Millisecond,
		}, nil).Once()

		rec := httptest.NewRecorder()
		NewRouter(s).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ops/sweeps/overdue", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body sweepResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, jobs.SweepOverdue, body.Sweep)
		assert.Equal(t, "abc", body.RunID)
		assert.Equal(t, 2, body.Applied)
		assert.Equal(t, int64(1500), body.DurationMS)
		assert.Empty(t, body.Error)
		s.AssertExpectations(t)
	})

	t.Run("Unknown sweep", func(t *testing.T) {
		s := new(MockScheduler)
		rec := httptest.NewRecorder()
		NewRouter(s).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ops/sweeps/billing", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		s.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
	})

	t.Run("Already running", func(t *testing.T) {
		s := new(MockScheduler)
		s.On("Trigger", mock.Anything, jobs.SweepReminder).
			Return(jobs.SweepReport{Sweep: jobs.SweepReminder}, scheduler.ErrSweepInProgress).Once()

		rec := httptest.NewRecorder()
		NewRouter(s).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ops/sweeps/reminder", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Sweep failure", func(t *testing.T) {
		s := new(MockScheduler)
		s.On("Trigger", mock.Anything, jobs.SweepFeeRecompute).
			Return(jobs.SweepReport{Sweep: jobs.SweepFeeRecompute, RunID: "r"}, errors.New("query failed")).Once()

		rec := httptest.NewRecorder()
		NewRouter(s).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ops/sweeps/fee-recompute", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var body sweepResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "query failed", body.Error)
	})

	t.Run("Wrong method", func(t *testing.T) {
		s := new(MockScheduler)
		rec := httptest.NewRecorder()
		NewRouter(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/sweeps/overdue", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestSweepHandler_HandleHealth(t *testing.T) {
	entries := []scheduler.EntryInfo{
		{Sweep: jobs.SweepOverdue, Spec: "0 0 1 * * *", Next: time.Date(2024, 6, 16, 1, 0, 0, 0, time.UTC)},
	}

	t.Run("Running", func(t *testing.T) {
		s := new(MockScheduler)
		s.On("IsRunning").Return(true)
		s.On("Entries").Return(entries)

		rec := httptest.NewRecorder()
		NewRouter(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.True(t, body.SchedulerRunning)
		require.Len(t, body.Sweeps, 1)
		assert.Equal(t, "0 0 1 * * *", body.Sweeps[0].Spec)
	})

	t.Run("Stopped", func(t *testing.T) {
		s := new(MockScheduler)
		s.On("IsRunning").Return(false)
		s.On("Entries").Return([]scheduler.EntryInfo{})

		rec := httptest.NewRecorder()
		NewRouter(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
