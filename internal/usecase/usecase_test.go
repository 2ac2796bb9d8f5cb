package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
)

type MockURLRepository struct {
	mock.Mock
}

func (r *MockURLRepository) Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	args := r.Called(ctx, shortCode, originalURL)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := r.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (r *MockURLRepository) RetrieveAll(ctx context.Context) ([]entity.URL, error) {
	args := r.Called(ctx)
	urls, _ := args.Get(0).([]entity.URL)
	return urls, args.Error(1)
}

type MockCodeGenerator struct {
	mock.Mock
}

func (g *MockCodeGenerator) Generate(length int) (string, error) {
	args := g.Called(length)
	return args.String(0), args.Error(1)
}

type URLUseCaseTestSuite struct {
	suite.Suite
	errUnknown  error
	urlRepoMock *MockURLRepository
	codeGenMock *MockCodeGenerator
	uc          *URLUseCase
}

func (suite *URLUseCaseTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
}

func (suite *URLUseCaseTestSuite) SetupSubTest() {
	suite.urlRepoMock = new(MockURLRepository)
	suite.codeGenMock = new(MockCodeGenerator)
	suite.uc = New(suite.urlRepoMock, suite.codeGenMock, WithReservedCodes("health"))
}

func (suite *URLUseCaseTestSuite) TearDownSubTest() {
	suite.urlRepoMock.AssertExpectations(suite.T())
	suite.codeGenMock.AssertExpectations(suite.T())
}

func (suite *URLUseCaseTestSuite) TestShortenURL() {
	ctx := context.Background()

	suite.Run("empty url", func() {
		for _, in := range []string{"", "   ", "\t\n"} {
			url, err := suite.uc.ShortenURL(ctx, in)

			suite.ErrorIs(err, entity.ErrEmptyURL)
			suite.Nil(url)
		}

		suite.urlRepoMock.AssertNotCalled(suite.T(), "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	suite.Run("short code generation error", func() {
		suite.uc.shortCodeLength = 0
		suite.codeGenMock.On("Generate", 0).Once().Return("", shortcode.ErrInvalidLength)

		url, err := suite.uc.ShortenURL(ctx, "https://example.com")

		suite.ErrorIs(err, shortcode.ErrInvalidLength)
		suite.Nil(url)
	})

	suite.Run("maximum retries error", func() {
		suite.codeGenMock.On("Generate", shortcode.DefaultLength).Times(defaultMaxRetries).Return("aaaaaaa", nil)
		suite.urlRepoMock.
			On("Save", ctx, "aaaaaaa", "https://example.com").
			Times(defaultMaxRetries).
			Return(nil, entity.ErrShortCodeExists)

		url, err := suite.uc.ShortenURL(ctx, "https://example.com")

		suite.ErrorIs(err, ErrMaxRetriesExceeded)
		suite.Nil(url)
	})

	suite.Run("unknown error is not retried", func() {
		suite.codeGenMock.On("Generate", shortcode.DefaultLength).Once().Return("aaaaaaa", nil)
		suite.urlRepoMock.
			On("Save", ctx, "aaaaaaa", "https://example.com").
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.uc.ShortenURL(ctx, "https://example.com")

		suite.ErrorIs(err, suite.errUnknown)
		suite.NotErrorIs(err, ErrMaxRetriesExceeded)
		suite.Nil(url)
	})

	suite.Run("collision then success", func() {
		suite.codeGenMock.On("Generate", shortcode.DefaultLength).Once().Return("aaaaaaa", nil)
		suite.codeGenMock.On("Generate", shortcode.DefaultLength).Once().Return("bbbbbbb", nil)
		suite.urlRepoMock.
			On("Save", ctx, "aaaaaaa", "https://example.com").
			Once().
			Return(nil, entity.ErrShortCodeExists)
		suite.urlRepoMock.
			On("Save", ctx, "bbbbbbb", "https://example.com").
			Once().
			Return(&entity.URL{ID: 1, ShortCode: "bbbbbbb", OriginalURL: "https://example.com"}, nil)

		url, err := suite.uc.ShortenURL(ctx, "https://example.com")

		suite.NoError(err)
		suite.Equal("bbbbbbb", url.ShortCode)
	})

	suite.Run("reserved code is regenerated without storage", func() {
		suite.uc.shortCodeLength = 6
		suite.codeGenMock.On("Generate", 6).Once().Return("health", nil)
		suite.codeGenMock.On("Generate", 6).Once().Return("abcdef", nil)
		suite.urlRepoMock.
			On("Save", ctx, "abcdef", "https://example.com").
			Once().
			Return(&entity.URL{ID: 1, ShortCode: "abcdef", OriginalURL: "https://example.com"}, nil)

		url, err := suite.uc.ShortenURL(ctx, "https://example.com")

		suite.NoError(err)
		suite.Equal("abcdef", url.ShortCode)
	})

	suite.Run("success", func() {
		suite.codeGenMock.On("Generate", shortcode.DefaultLength).Once().Return("abc1234", nil)
		suite.urlRepoMock.
			On("Save", ctx, "abc1234", "https://example.com").
			Once().
			Return(&entity.URL{ID: 1, ShortCode: "abc1234", OriginalURL: "https://example.com"}, nil)

		url, err := suite.uc.ShortenURL(ctx, "https://example.com")

		suite.NoError(err)
		suite.Equal(&entity.URL{ID: 1, ShortCode: "abc1234", OriginalURL: "https://example.com"}, url)
	})
}

func (suite *URLUseCaseTestSuite) TestListURLs() {
	ctx := context.Background()

	suite.Run("unknown error", func() {
		suite.urlRepoMock.On("RetrieveAll", ctx).Once().Return(nil, suite.errUnknown)

		urls, err := suite.uc.ListURLs(ctx)

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(urls)
	})

	suite.Run("success", func() {
		want := []entity.URL{
			{ID: 2, ShortCode: "bbbbbbb", OriginalURL: "https://example.com/2"},
			{ID: 1, ShortCode: "aaaaaaa", OriginalURL: "https://example.com/1"},
		}
		suite.urlRepoMock.On("RetrieveAll", ctx).Once().Return(want, nil)

		urls, err := suite.uc.ListURLs(ctx)

		suite.NoError(err)
		suite.Equal(want, urls)
	})
}

func (suite *URLUseCaseTestSuite) TestResolveShortCode() {
	ctx := context.Background()

	suite.Run("not found", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", ctx, "abc1234").
			Once().
			Return(nil, entity.ErrURLNotFound)

		url, err := suite.uc.ResolveShortCode(ctx, "abc1234")

		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", ctx, "abc1234").
			Once().
			Return(nil, suite.errUnknown)

		url, err := suite.uc.ResolveShortCode(ctx, "abc1234")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		suite.urlRepoMock.
			On("RetrieveByShortCode", ctx, "abc1234").
			Once().
			Return(&entity.URL{ShortCode: "abc1234", OriginalURL: "https://example.com"}, nil)

		url, err := suite.uc.ResolveShortCode(ctx, "abc1234")

		suite.NoError(err)
		suite.Equal("https://example.com", url.OriginalURL)
	})
}

func TestURLUseCase(t *testing.T) {
	suite.Run(t, new(URLUseCaseTestSuite))
}

// memRepository is an in-memory store that enforces short code uniqueness.
type memRepository struct {
	mu   sync.Mutex
	urls []entity.URL
	now  time.Time
}

func (r *memRepository) Save(_ context.Context, shortCode, originalURL string) (*entity.URL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.urls {
		if u.ShortCode == shortCode {
			return nil, entity.ErrShortCodeExists
		}
	}

	r.now = r.now.Add(time.Second)
	url := entity.URL{
		ID:          int64(len(r.urls) + 1),
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		CreatedAt:   r.now,
	}
	r.urls = append(r.urls, url)

	return &url, nil
}

func (r *memRepository) RetrieveByShortCode(_ context.Context, shortCode string) (*entity.URL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.urls {
		if u.ShortCode == shortCode {
			return &u, nil
		}
	}

	return nil, entity.ErrURLNotFound
}

func (r *memRepository) RetrieveAll(_ context.Context) ([]entity.URL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	urls := make([]entity.URL, 0, len(r.urls))
	for i := len(r.urls) - 1; i >= 0; i-- {
		urls = append(urls, r.urls[i])
	}

	return urls, nil
}

// scriptedSource replays fixed indexes into shortcode.Alphabet.
type scriptedSource struct {
	values []int
}

func (s *scriptedSource) IntN(int) int {
	v := s.values[0]
	s.values = s.values[1:]
	return v
}

func TestURLUseCase_withStore(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		uc := New(&memRepository{}, shortcode.NewRandom())

		created, err := uc.ShortenURL(ctx, "https://example.com")
		require.NoError(t, err)
		assert.Len(t, created.ShortCode, shortcode.DefaultLength)
		assert.True(t, shortcode.Valid(created.ShortCode))

		resolved, err := uc.ResolveShortCode(ctx, created.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", resolved.OriginalURL)
	})

	t.Run("colliding code is regenerated", func(t *testing.T) {
		repo := &memRepository{}
		// "aaa", then "aaa" again, then "bbb".
		src := &scriptedSource{values: []int{0, 0, 0, 0, 0, 0, 1, 1, 1}}
		uc := New(repo, shortcode.New(src), WithShortCodeLength(3))

		first, err := uc.ShortenURL(ctx, "https://example.com/1")
		require.NoError(t, err)
		second, err := uc.ShortenURL(ctx, "https://example.com/2")
		require.NoError(t, err)

		assert.Equal(t, "aaa", first.ShortCode)
		assert.Equal(t, "bbb", second.ShortCode)

		urls, err := uc.ListURLs(ctx)
		require.NoError(t, err)
		assert.Len(t, urls, 2)
	})

	t.Run("list is most recent first", func(t *testing.T) {
		uc := New(&memRepository{}, shortcode.NewRandom())

		for _, u := range []string{"https://u1.example", "https://u2.example", "https://u3.example"} {
			_, err := uc.ShortenURL(ctx, u)
			require.NoError(t, err)
		}

		urls, err := uc.ListURLs(ctx)
		require.NoError(t, err)
		require.Len(t, urls, 3)
		assert.Equal(t, "https://u3.example", urls[0].OriginalURL)
		assert.Equal(t, "https://u2.example", urls[1].OriginalURL)
		assert.Equal(t, "https://u1.example", urls[2].OriginalURL)
	})

	t.Run("empty input persists nothing", func(t *testing.T) {
		repo := &memRepository{}
		uc := New(repo, shortcode.NewRandom())

		_, err := uc.ShortenURL(ctx, "")

		assert.ErrorIs(t, err, entity.ErrEmptyURL)
		assert.Empty(t, repo.urls)
	})
}
