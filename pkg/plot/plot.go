// Package plot turns samples and extrema into a declarative chart description.
package plot

import (
	"strconv"

	"dfchart/pkg/models"
)

const (
	// LowSpaceThresholdMB separates critical extrema from comfortable ones.
	LowSpaceThresholdMB = 500

	// Extrema at or below the threshold are all labelled; the others only
	// every third row so their labels do not overlap. Labels carry free MB.
	//
	// lowLabelStride applies to the red " free ≤500MB" layer.
	lowLabelStride = 1
	// highLabelStride applies to the blue " free >500MB" layer.
	highLabelStride = 3

	// Label placement offsets, scaled by the row rank.
	rankOffset     = 5
	lowLabelShift  = -30
	highLabelShift = 10

	yMin = 0
	// Headroom above 100% keeps labels inside the plot area.
	yMax = 130

	timeFormat = "%H:%M:%S"
)

// Point is one line vertex: epoch seconds and a percentage.
type Point struct {
	X int64
	Y float64
}

// Line is a percentage series drawn over time.
type Line struct {
	Title  string
	Color  string
	Points []Point
}

// Marker is an annotated extrema point. TextY is where the label sits.
type Marker struct {
	X     int64
	Y     float64
	Text  string
	TextY float64
}

// Layer is a group of markers sharing one style.
type Layer struct {
	Title     string
	Color     string
	PointType int
	// Stride is the row stride over the extrema that selected these markers.
	Stride  int
	Markers []Marker
}

// Axis describes the x axis.
type Axis struct {
	Time   bool
	Format string
}

// Spec is a complete chart description.
type Spec struct {
	Title  string
	XAxis  Axis
	YRange [2]float64
	Lines  []Line
	Layers []Layer
}

// Plan builds the chart for a mount. It has no side effects.
func Plan(name string, samples []models.Sample, extrema []models.ExtremaRow) Spec {
	space := Line{Title: " % space use", Color: "#8b1a0e"}
	inodes := Line{Title: " % inodes use", Color: "#5e9c36"}
	for _, sample := range samples {
		if pct, ok := sample.SpaceUsedPercent(); ok {
			space.Points = append(space.Points, Point{X: sample.BeginStamp, Y: pct})
		}
		if pct, ok := sample.InodeUsedPercent(); ok {
			inodes.Points = append(inodes.Points, Point{X: sample.BeginStamp, Y: pct})
		}
	}

	high := Layer{Title: " free >500MB", Color: "blue", PointType: 14, Stride: highLabelStride}
	low := Layer{Title: " free ≤500MB", Color: "red", PointType: 3, Stride: lowLabelStride}
	for i, row := range extrema {
		marker := Marker{X: row.BeginStamp, Y: row.PercentUsed, Text: strconv.FormatInt(row.FsAvailMB, 10)}
		if row.FsAvailMB <= LowSpaceThresholdMB {
			if i%low.Stride == 0 {
				marker.TextY = row.PercentUsed + float64(rankOffset*row.Rank+lowLabelShift)
				low.Markers = append(low.Markers, marker)
			}
			continue
		}
		if i%high.Stride == 0 {
			marker.TextY = row.PercentUsed - float64(rankOffset*row.Rank) + highLabelShift
			high.Markers = append(high.Markers, marker)
		}
	}

	return Spec{
		Title:  "disk usage for " + name,
		XAxis:  Axis{Time: true, Format: timeFormat},
		YRange: [2]float64{yMin, yMax},
		Lines:  []Line{space, inodes},
		Layers: []Layer{high, low},
	}
}
