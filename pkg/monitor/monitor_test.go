package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"dfchart/pkg/cache"
	"dfchart/pkg/extrema"
	"dfchart/pkg/fault"
	"dfchart/pkg/models"
	"dfchart/pkg/samplestore"
	"dfchart/pkg/window"
)

type fakeRenderer struct {
	windows []window.Window
	err     error
}

func (f *fakeRenderer) GetOrRender(_ context.Context, mount string, w window.Window) (*cache.Artifact, error) {
	f.windows = append(f.windows, w)
	if f.err != nil {
		return nil, f.err
	}
	return &cache.Artifact{Key: cache.NewKey(mount, w), Path: "/tmp/chart.html"}, nil
}

type brokenMounts struct{}

func (brokenMounts) Mounts(context.Context) ([]string, error) {
	return nil, errors.New("no such table: stat_vfs")
}

// MonitorTestSuite tests the request facade.
type MonitorTestSuite struct {
	suite.Suite
	now      time.Time
	store    *samplestore.MemoryStore
	renderer *fakeRenderer
	monitor  *Monitor
	ctx      context.Context
}

// SetupTest runs before each test.
func (s *MonitorTestSuite) SetupTest() {
	s.now = time.Unix(1_700_000_000, 0)
	s.ctx = context.Background()
	s.store = samplestore.NewMemoryStore()
	s.renderer = &fakeRenderer{}

	for i, avail := range []float64{900, 100, 800, 50, 700} {
		stamp := s.now.Unix() - 1800 + int64(i*10)
		s.store.Add(models.Sample{
			Name: "/data", BeginStamp: stamp, RenewStamp: stamp,
			FsTotal: 1000 * models.BytesPerMB, FsAvail: avail * models.BytesPerMB,
		})
	}

	s.monitor = New(
		window.NewResolver(func() time.Time { return s.now }),
		s.renderer,
		extrema.NewAggregator(s.store, zerolog.Nop()),
		s.store,
		zerolog.Nop(),
	)
}

// TestChartDefaults tests the default pivot and delta.
func (s *MonitorTestSuite) TestChartDefaults() {
	artifact, err := s.monitor.Chart(s.ctx, Request{Mount: "/data"})
	s.Require().NoError(err)
	s.Equal("/tmp/chart.html", artifact.Path)

	s.Require().Len(s.renderer.windows, 1)
	w := s.renderer.windows[0]
	s.Equal(s.now.Unix()-1800, w.Pivot)
	s.Equal(s.now.Unix()-3600, w.Start)
	s.Equal(s.now.Unix(), w.Stop)
	s.Equal(1, w.Step)
}

// TestChartExplicitWindow tests numeric and date-time pivots.
func (s *MonitorTestSuite) TestChartExplicitWindow() {
	_, err := s.monitor.Chart(s.ctx, Request{Mount: "/data", Pivot: "1600000000.9", Delta: "7200"})
	s.Require().NoError(err)
	_, err = s.monitor.Chart(s.ctx, Request{Mount: "/data", Pivot: "2020-09-13T12:26:40UTC"})
	s.Require().NoError(err)

	s.Require().Len(s.renderer.windows, 2)
	s.Equal(int64(1_600_000_000), s.renderer.windows[0].Pivot)
	s.Equal(3, s.renderer.windows[0].Step)
	s.Equal(int64(1_600_000_000), s.renderer.windows[1].Pivot)
	s.Equal(int64(window.DefaultDelta), s.renderer.windows[1].Delta)
}

// TestChartRejectsBadInput tests client errors before rendering.
func (s *MonitorTestSuite) TestChartRejectsBadInput() {
	tests := []struct {
		name string
		req  Request
		err  error
	}{
		{"missing mount", Request{}, fault.ErrInvalidParameter},
		{"blank mount", Request{Mount: "  "}, fault.ErrInvalidParameter},
		{"mount with newline", Request{Mount: "/data\nset output '/etc/x'"}, fault.ErrInvalidParameter},
		{"mount with carriage return", Request{Mount: "/data\r"}, fault.ErrInvalidParameter},
		{"delta too wide", Request{Mount: "/data", Delta: "43200"}, fault.ErrInvalidWindow},
		{"delta not a number", Request{Mount: "/data", Delta: "wide"}, fault.ErrInvalidWindow},
		{"pivot garbage", Request{Mount: "/data", Pivot: "yesterday"}, fault.ErrInvalidWindow},
		{"pivot near epoch", Request{Mount: "/data", Pivot: "100"}, fault.ErrInvalidWindow},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.monitor.Chart(s.ctx, tt.req)
			s.ErrorIs(err, tt.err)
			s.True(fault.IsClient(err))
		})
	}
	s.Empty(s.renderer.windows)
}

// TestChartPropagatesRenderErrors tests that cache errors keep their kind.
func (s *MonitorTestSuite) TestChartPropagatesRenderErrors() {
	s.renderer.err = fmt.Errorf("%w: /data", fault.ErrNoData)
	_, err := s.monitor.Chart(s.ctx, Request{Mount: "/data"})
	s.Equal(fault.KindNoData, fault.KindOf(err))

	s.renderer.err = &fault.RenderError{Err: errors.New("exit status 1")}
	_, err = s.monitor.Chart(s.ctx, Request{Mount: "/data"})
	s.Equal(fault.KindRenderFailure, fault.KindOf(err))
	s.False(fault.IsClient(err))
}

// TestExtremaDefaults tests default mode and limit.
func (s *MonitorTestSuite) TestExtremaDefaults() {
	result, err := s.monitor.Extrema(s.ctx, Request{Mount: "/data"})
	s.Require().NoError(err)
	s.Equal(extrema.Min, result.Mode)
	s.Equal(7, result.Limit)
	s.Len(result.Rows, 5)
}

// TestExtremaLimit tests an explicit limit and mode.
func (s *MonitorTestSuite) TestExtremaLimit() {
	result, err := s.monitor.Extrema(s.ctx, Request{Mount: "/data", Agg: "MIN", Limit: "2"})
	s.Require().NoError(err)
	s.Require().Len(result.Rows, 2)
	s.Equal(int64(2), result.Rows[0].ID)
	s.Equal(int64(4), result.Rows[1].ID)

	result, err = s.monitor.Extrema(s.ctx, Request{Mount: "/data", Agg: "max", Limit: "2"})
	s.Require().NoError(err)
	s.Require().Len(result.Rows, 2)
	s.Equal(int64(1), result.Rows[0].ID)
	s.Equal(int64(3), result.Rows[1].ID)
}

// TestExtremaRejectsBadParameters tests aggregate and limit validation.
func (s *MonitorTestSuite) TestExtremaRejectsBadParameters() {
	for _, req := range []Request{
		{Mount: "/data", Agg: "avg"},
		{Mount: "/data", Limit: "0"},
		{Mount: "/data", Limit: "30"},
		{Mount: "/data", Limit: "many"},
	} {
		_, err := s.monitor.Extrema(s.ctx, req)
		s.ErrorIs(err, fault.ErrInvalidParameter, "request %+v", req)
	}
}

// TestExtremaEmptyWindow tests that no rows is an empty list.
func (s *MonitorTestSuite) TestExtremaEmptyWindow() {
	result, err := s.monitor.Extrema(s.ctx, Request{Mount: "/other"})
	s.Require().NoError(err)
	s.NotNil(result.Rows)
	s.Empty(result.Rows)
}

// TestMounts tests mount listing.
func (s *MonitorTestSuite) TestMounts() {
	s.store.Add(models.Sample{Name: "/boot", BeginStamp: 10, RenewStamp: 10})

	names, err := s.monitor.Mounts(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"/boot", "/data"}, names)

	broken := New(nil, s.renderer, nil, brokenMounts{}, zerolog.Nop())
	_, err = broken.Mounts(s.ctx)
	s.ErrorIs(err, fault.ErrStore)

	_, err = broken.Extrema(s.ctx, Request{Mount: "/data"})
	s.ErrorIs(err, fault.ErrInvalidParameter)
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}
