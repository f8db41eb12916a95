package plot

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"dfchart/pkg/models"
)

const mb = models.BytesPerMB

// PlotTestSuite tests planning and gnuplot encoding.
type PlotTestSuite struct {
	suite.Suite
	tempDir string
}

// SetupTest runs before each test.
func (s *PlotTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
}

func extremaRows(availMB ...int64) []models.ExtremaRow {
	rows := make([]models.ExtremaRow, 0, len(availMB))
	for i, avail := range availMB {
		rows = append(rows, models.NewExtremaRow(int64(i+1), 1000+int64(i), 1000*mb, float64(avail*mb), i+1))
	}
	return rows
}

// TestPlanLines tests per-sample percentages and the zero-total guard.
func (s *PlotTestSuite) TestPlanLines() {
	samples := []models.Sample{
		{ID: 1, BeginStamp: 100, FsTotal: 200, FsAvail: 50, InodeTotal: 10, InodeAvail: 5},
		{ID: 2, BeginStamp: 110, FsTotal: 0, FsAvail: 0, InodeTotal: 10, InodeAvail: 1},
		{ID: 3, BeginStamp: 120, FsTotal: 100, FsAvail: 100, InodeTotal: 0, InodeAvail: 0},
	}

	spec := Plan("/data", samples, nil)

	s.Equal("disk usage for /data", spec.Title)
	s.True(spec.XAxis.Time)
	s.Equal("%H:%M:%S", spec.XAxis.Format)
	s.Equal([2]float64{0, 130}, spec.YRange)
	s.Require().Len(spec.Lines, 2)
	s.Equal([]Point{{X: 100, Y: 75}, {X: 120, Y: 0}}, spec.Lines[0].Points)
	s.Equal([]Point{{X: 100, Y: 50}, {X: 110, Y: 90}}, spec.Lines[1].Points)
}

// TestPlanMarkerClassesAndStride tests threshold split and label strides.
func (s *PlotTestSuite) TestPlanMarkerClassesAndStride() {
	rows := extremaRows(900, 100, 800, 700, 500, 600, 50)

	spec := Plan("/data", nil, rows)
	s.Require().Len(spec.Layers, 2)
	high, low := spec.Layers[0], spec.Layers[1]

	s.Equal(3, high.Stride)
	s.Equal(1, low.Stride)
	s.Equal("blue", high.Color)
	s.Equal("red", low.Color)
	s.Equal(" free >500MB", high.Title)
	s.Equal(" free ≤500MB", low.Title)

	// High rows sit at positions 0, 2, 3 and 5; only 0 and 3 fall on the stride.
	var highText []string
	for _, m := range high.Markers {
		highText = append(highText, m.Text)
	}
	s.Equal([]string{"900", "700"}, highText)

	// Every low row is kept, including exactly 500.
	var lowText []string
	for _, m := range low.Markers {
		lowText = append(lowText, m.Text)
	}
	s.Equal([]string{"100", "500", "50"}, lowText)
}

// TestPlanLabelOffsets tests rank based label placement.
func (s *PlotTestSuite) TestPlanLabelOffsets() {
	rows := extremaRows(900, 100)

	spec := Plan("/data", nil, rows)
	high, low := spec.Layers[0], spec.Layers[1]

	s.Require().Len(high.Markers, 1)
	s.InDelta(10.0, high.Markers[0].Y, 1e-9)
	s.InDelta(10.0-5+10, high.Markers[0].TextY, 1e-9)

	s.Require().Len(low.Markers, 1)
	s.InDelta(90.0, low.Markers[0].Y, 1e-9)
	s.InDelta(90.0+10-30, low.Markers[0].TextY, 1e-9)
	s.Equal(int64(1001), low.Markers[0].X)
}

// TestProgram tests the generated gnuplot program and data files.
func (s *PlotTestSuite) TestProgram() {
	samples := []models.Sample{
		{ID: 1, BeginStamp: 100, FsTotal: 200, FsAvail: 50, InodeTotal: 10, InodeAvail: 5},
		{ID: 2, BeginStamp: 200, FsTotal: 200, FsAvail: 100, InodeTotal: 10, InodeAvail: 5},
	}
	spec := Plan("/data's", samples, extremaRows(100))

	files, err := WriteData(spec, s.tempDir)
	s.Require().NoError(err)
	defer files.Remove()

	series, err := os.ReadFile(files.Series)
	s.Require().NoError(err)
	s.Equal("100,75.0000\n200,50.0000\n\n\n100,50.0000\n200,50.0000\n", string(series))

	markers, err := os.ReadFile(files.Markers)
	s.Require().NoError(err)
	s.Equal("1000,90.0000,65.0000,100\n", string(markers))

	program, err := Program(spec, files)
	s.Require().NoError(err)

	s.Contains(program, "set title 'disk usage for /data''s'")
	s.Contains(program, "set xdata time")
	s.Contains(program, `set timefmt "%s"`)
	s.Contains(program, "set format x '%H:%M:%S'")
	s.Contains(program, `set datafile separator ","`)
	s.Contains(program, "set style line 1 lc rgb '#8b1a0e'")
	s.Contains(program, "set style line 2 lc rgb '#5e9c36'")
	s.Contains(program, "set yrange [0:130]")
	s.Contains(program, "'"+files.Series+"' index 0 using 1:2 with lines title ' % space use' ls 1")
	s.Contains(program, "'"+files.Series+"' index 1 using 1:2 with lines title ' % inodes use' ls 2")
	s.Contains(program, "'"+files.Markers+"' index 0 using 1:2 with points pt 3 lc rgb \"red\"")
	s.Contains(program, "'"+files.Markers+"' index 0 using 1:3:4 with labels center offset 0,0 tc rgb \"red\" notitle")
	s.NotContains(program, "pt 14")
	s.Equal(4, strings.Count(program, "index "))
}

// TestProgramFlattensLineBreaks tests that a title cannot start a new directive.
func (s *PlotTestSuite) TestProgramFlattensLineBreaks() {
	samples := []models.Sample{
		{ID: 1, BeginStamp: 100, FsTotal: 200, FsAvail: 50, InodeTotal: 10, InodeAvail: 5},
	}
	spec := Plan("/data\nset output '/etc/x'\r", samples, extremaRows(100))

	files, err := WriteData(spec, s.tempDir)
	s.Require().NoError(err)
	defer files.Remove()

	program, err := Program(spec, files)
	s.Require().NoError(err)

	s.Contains(program, "set title 'disk usage for /data set output ''/etc/x'' '\n")
	s.NotContains(program, "\nset output")
	s.NotContains(program, "\r")
	s.Equal("'a b c d'", quote("a\r\nb\nc\rd"))
}

// TestProgramEmpty tests that a spec without points is rejected.
func (s *PlotTestSuite) TestProgramEmpty() {
	spec := Plan("/data", []models.Sample{{ID: 1, BeginStamp: 1}}, nil)

	files, err := WriteData(spec, s.tempDir)
	s.Require().NoError(err)
	defer files.Remove()

	_, err = Program(spec, files)
	s.ErrorIs(err, ErrEmptyPlot)
}

// TestDataFilesRemove tests cleanup.
func (s *PlotTestSuite) TestDataFilesRemove() {
	files, err := WriteData(Plan("/data", nil, nil), s.tempDir)
	s.Require().NoError(err)

	files.Remove()
	_, err = os.Stat(files.Series)
	s.True(os.IsNotExist(err))
	_, err = os.Stat(files.Markers)
	s.True(os.IsNotExist(err))
}

// TestWriteDataBadDir tests failure in a missing directory.
func (s *PlotTestSuite) TestWriteDataBadDir() {
	_, err := WriteData(Plan("/data", nil, nil), "/nonexistent/dir")
	s.Error(err)
}

func TestPlotTestSuite(t *testing.T) {
	suite.Run(t, new(PlotTestSuite))
}
