package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tabviz/internal/charts"
	"tabviz/internal/storage"
)

// MockWebSocketHub is a mock for the EventBroadcaster interface
type MockWebSocketHub struct {
	mock.Mock
}

func (m *MockWebSocketHub) Broadcast(messageType string, data interface{}) {
	m.Called(messageType, data)
}

func (m *MockWebSocketHub) ClientCount() int {
	args := m.Called()
	return args.Int(0)
}

// MockLoadHistory is a mock for the LoadHistory interface
type MockLoadHistory struct {
	mock.Mock
}

func (m *MockLoadHistory) Record(ctx context.Context, rec storage.LoadRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockLoadHistory) Recent(ctx context.Context, limit int) ([]storage.LoadRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.LoadRecord), args.Error(1)
}

// MockRenderer is a mock for render.Renderer
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, res *charts.Resolution) ([]byte, error) {
	args := m.Called(ctx, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockChartCache is a mock for the ChartCache interface
type MockChartCache struct {
	mock.Mock
}

func (m *MockChartCache) Get(key uint64) ([]byte, bool, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockChartCache) Put(key uint64, image []byte) error {
	args := m.Called(key, image)
	return args.Error(0)
}

func (m *MockChartCache) Len() int {
	args := m.Called()
	return args.Int(0)
}
