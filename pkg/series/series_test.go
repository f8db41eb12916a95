package series

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"dfchart/pkg/fault"
	"dfchart/pkg/models"
	"dfchart/pkg/window"
)

type fakeSource struct {
	samples []models.Sample
	err     error
	calls   int
}

func (f *fakeSource) Series(_ context.Context, name string, start, stop int64) ([]models.Sample, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Sample
	for _, sample := range f.samples {
		if sample.Name == name && sample.Overlaps(start, stop) {
			out = append(out, sample)
		}
	}
	return out, nil
}

// SeriesTestSuite tests the series fetcher.
type SeriesTestSuite struct {
	suite.Suite
	source *fakeSource
	window window.Window
}

// SetupTest runs before each test.
func (s *SeriesTestSuite) SetupTest() {
	s.source = &fakeSource{}
	for i := int64(1); i <= 10; i++ {
		s.source.samples = append(s.source.samples, models.Sample{
			ID: i, Name: "/data", BeginStamp: 10_000 + i, RenewStamp: 10_000 + i, FsTotal: 10, FsAvail: 5,
		})
	}

	var err error
	s.window, err = window.New(10_000, 7200)
	s.Require().NoError(err)
}

// TestFetchDense tests that the default fetch returns every sample.
func (s *SeriesTestSuite) TestFetchDense() {
	fetcher := NewFetcher(s.source, Options{Smooth: true}, zerolog.Nop())

	samples, err := fetcher.Fetch(context.Background(), "/data", s.window)
	s.Require().NoError(err)
	s.Len(samples, 10)
	s.Equal(s.source.samples, samples)
}

// TestFetchEmpty tests that no samples is an empty result.
func (s *SeriesTestSuite) TestFetchEmpty() {
	fetcher := NewFetcher(s.source, Options{}, zerolog.Nop())

	samples, err := fetcher.Fetch(context.Background(), "/other", s.window)
	s.NoError(err)
	s.Empty(samples)
}

// TestFetchThinned tests thinning by the window step.
func (s *SeriesTestSuite) TestFetchThinned() {
	fetcher := NewFetcher(s.source, Options{Thin: true}, zerolog.Nop())

	samples, err := fetcher.Fetch(context.Background(), "/data", s.window)
	s.Require().NoError(err)
	s.Equal(3, s.window.Step)

	var ids []int64
	for _, sample := range samples {
		ids = append(ids, sample.ID)
	}
	s.Equal([]int64{1, 4, 7, 10}, ids)
}

// TestThin tests the thinning edge cases.
func (s *SeriesTestSuite) TestThin() {
	s.Equal(s.source.samples, Thin(s.source.samples, 1))
	s.Len(Thin(s.source.samples[:2], 3), 2)
	s.Len(Thin(s.source.samples[:9], 3), 4)
	s.Empty(Thin(nil, 3))
}

// TestFetchStoreError tests failure wrapping.
func (s *SeriesTestSuite) TestFetchStoreError() {
	s.source.err = errors.New("disk I/O error")
	fetcher := NewFetcher(s.source, Options{}, zerolog.Nop())

	_, err := fetcher.Fetch(context.Background(), "/data", s.window)
	s.ErrorIs(err, fault.ErrStore)
	s.Equal(1, s.source.calls)
}

func TestSeriesTestSuite(t *testing.T) {
	suite.Run(t, new(SeriesTestSuite))
}
