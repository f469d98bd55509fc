// Package mocks provides test doubles for the results store.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/yield-atlas/internal/model"
	store "github.com/sells-group/yield-atlas/internal/store"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateRun provides a mock function with given fields: ctx, run
func (_m *MockStore) CreateRun(ctx context.Context, run *model.Run) error {
	ret := _m.Called(ctx, run)

	if len(ret) == 0 {
		panic("no return value specified for CreateRun")
	}

	if rf, ok := ret.Get(0).(func(context.Context, *model.Run) error); ok {
		return rf(ctx, run)
	}
	return ret.Error(0)
}

// FinishRun provides a mock function with given fields: ctx, run
func (_m *MockStore) FinishRun(ctx context.Context, run *model.Run) error {
	ret := _m.Called(ctx, run)

	if len(ret) == 0 {
		panic("no return value specified for FinishRun")
	}

	if rf, ok := ret.Get(0).(func(context.Context, *model.Run) error); ok {
		return rf(ctx, run)
	}
	return ret.Error(0)
}

// GetRun provides a mock function with given fields: ctx, runID
func (_m *MockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for GetRun")
	}

	var r0 *model.Run
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Run, error)); ok {
		return rf(ctx, runID)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// ListRuns provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListRuns")
	}

	var r0 []model.Run
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, store.RunFilter) ([]model.Run, error)); ok {
		return rf(ctx, filter)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Run)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// SaveResults provides a mock function with given fields: ctx, runID, counties
func (_m *MockStore) SaveResults(ctx context.Context, runID string, counties []*model.County) error {
	ret := _m.Called(ctx, runID, counties)

	if len(ret) == 0 {
		panic("no return value specified for SaveResults")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string, []*model.County) error); ok {
		return rf(ctx, runID, counties)
	}
	return ret.Error(0)
}

// CountyResults provides a mock function with given fields: ctx, runID
func (_m *MockStore) CountyResults(ctx context.Context, runID string) ([]model.CountyResult, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for CountyResults")
	}

	var r0 []model.CountyResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.CountyResult, error)); ok {
		return rf(ctx, runID)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.CountyResult)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}

	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		return rf(ctx)
	}
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	if rf, ok := ret.Get(0).(func() error); ok {
		return rf()
	}
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

var _ store.Store = (*MockStore)(nil)
