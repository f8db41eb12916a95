package plot

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
)

// ErrEmptyPlot is returned when a spec has nothing to draw.
var ErrEmptyPlot = errors.New("plot has no drawable points")

// DataFiles are the two comma separated inputs referenced by a program.
// Each non-empty line or layer is a block addressed with gnuplot's index.
type DataFiles struct {
	Series  string
	Markers string

	lineIndex  []int
	layerIndex []int
}

// Remove deletes both data files.
func (f DataFiles) Remove() {
	for _, path := range []string{f.Series, f.Markers} {
		if path != "" {
			_ = os.Remove(path)
		}
	}
}

const programTemplate = `set xtics rotate
set title {{ gpstr .Spec.Title }}
{{- if .Spec.XAxis.Time }}
set xdata time
set timefmt "%s"
set format x {{ gpstr .Spec.XAxis.Format }}
{{- end }}
set datafile separator ","

set style line 11 lc rgb '#808080' lt 1
set border 3 back ls 11
set tics nomirror
set style line 12 lc rgb '#808080' lt 0 lw 1
set grid back ls 12
{{ range $i, $line := .Spec.Lines }}
set style line {{ add $i 1 }} lc rgb {{ gpstr $line.Color }} pt 1 ps 1 lt 1 lw 2
{{- end }}
set key top right Left box ls 11 height 1 width 0

set encoding utf8

set yrange [{{ index .Spec.YRange 0 }}:{{ index .Spec.YRange 1 }}]
plot {{ join ", \\\n     " .Clauses }}
`

var program = template.Must(template.New("gnuplot").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"gpstr": quote}).
	Parse(programTemplate))

// quote renders s as a single quoted gnuplot string.
func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}

// quoteReplacer doubles single quotes and flattens line breaks, which would
// otherwise end the directive.
var quoteReplacer = strings.NewReplacer("'", "''", "\r\n", " ", "\n", " ", "\r", " ")

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteData writes the spec's points into two temporary files under dir.
func WriteData(spec Spec, dir string) (DataFiles, error) {
	files := DataFiles{}

	seriesPath, lineIndex, err := writeBlocks(dir, "series-*.csv", len(spec.Lines), func(i int, w *bufio.Writer) int {
		for _, p := range spec.Lines[i].Points {
			fmt.Fprintf(w, "%d,%s\n", p.X, formatFloat(p.Y))
		}
		return len(spec.Lines[i].Points)
	})
	if err != nil {
		return files, err
	}
	files.Series, files.lineIndex = seriesPath, lineIndex

	markersPath, layerIndex, err := writeBlocks(dir, "extrema-*.csv", len(spec.Layers), func(i int, w *bufio.Writer) int {
		for _, m := range spec.Layers[i].Markers {
			fmt.Fprintf(w, "%d,%s,%s,%s\n", m.X, formatFloat(m.Y), formatFloat(m.TextY), m.Text)
		}
		return len(spec.Layers[i].Markers)
	})
	if err != nil {
		files.Remove()
		return DataFiles{}, err
	}
	files.Markers, files.layerIndex = markersPath, layerIndex

	return files, nil
}

// writeBlocks writes count blocks separated by two blank lines. Empty blocks
// are skipped; the returned slice maps each block to its index or -1.
func writeBlocks(dir, pattern string, count int, write func(int, *bufio.Writer) int) (string, []int, error) {
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, err
	}

	w := bufio.NewWriter(file)
	index := make([]int, count)
	next := 0
	for i := 0; i < count; i++ {
		var block bytes.Buffer
		bw := bufio.NewWriter(&block)
		rows := write(i, bw)
		_ = bw.Flush()
		if rows == 0 {
			index[i] = -1
			continue
		}
		if next > 0 {
			_, _ = w.WriteString("\n\n")
		}
		_, _ = w.Write(block.Bytes())
		index[i] = next
		next++
	}

	if err := w.Flush(); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", nil, err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", nil, err
	}
	return file.Name(), index, nil
}

// Program renders the gnuplot program drawing spec from files.
func Program(spec Spec, files DataFiles) (string, error) {
	var clauses []string

	for i, line := range spec.Lines {
		if i >= len(files.lineIndex) || files.lineIndex[i] < 0 {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s index %d using 1:2 with lines title %s ls %d",
			quote(files.Series), files.lineIndex[i], quote(line.Title), i+1))
	}
	for i, layer := range spec.Layers {
		if i >= len(files.layerIndex) || files.layerIndex[i] < 0 {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s index %d using 1:2 with points pt %d lc rgb %q title %s",
			quote(files.Markers), files.layerIndex[i], layer.PointType, layer.Color, quote(layer.Title)))
		clauses = append(clauses, fmt.Sprintf("%s index %d using 1:3:4 with labels center offset 0,0 tc rgb %q notitle",
			quote(files.Markers), files.layerIndex[i], layer.Color))
	}

	if len(clauses) == 0 {
		return "", ErrEmptyPlot
	}

	var out bytes.Buffer
	err := program.Execute(&out, struct {
		Spec    Spec
		Clauses []string
	}{Spec: spec, Clauses: clauses})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}
