package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type MockURLUseCase struct {
	mock.Mock
}

func NewMockURLUseCase(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockURLUseCase {
	m := &MockURLUseCase{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockURLUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	args := m.Called(ctx, originalURL)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (m *MockURLUseCase) ListURLs(ctx context.Context) ([]entity.URL, error) {
	args := m.Called(ctx)
	urls, _ := args.Get(0).([]entity.URL)
	return urls, args.Error(1)
}

func (m *MockURLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := m.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
