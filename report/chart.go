package report

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"vitals_backend/detection"
)

// ErrNoChart is returned when there is nothing to plot.
var ErrNoChart = errors.New("no faces to chart")

const (
	chartWidth        = 14 * vg.Inch
	chartHeightPerRow = 3 * vg.Inch
	chartDPI          = 100
)

var lineColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}

// panel is one cell of the chart grid.
type panel struct {
	title       string
	series      *detection.Series
	defaultUnit string
}

// RenderChart draws a PNG grid with two rows per face:
//
//	PPG Waveform       | Respiratory Waveform
//	Rolling Heart Rate | Rolling Respiratory Rate
//
// Panels without data keep their slot but have their axes hidden.
func RenderChart(faces []detection.FaceResult) ([]byte, error) {
	if len(faces) == 0 {
		return nil, ErrNoChart
	}

	rows := 2 * len(faces)
	const cols = 2
	plots := make([][]*plot.Plot, rows)
	for j := range plots {
		plots[j] = make([]*plot.Plot, cols)
	}

	for i, face := range faces {
		vs := face.VitalSigns
		cells := [2][2]panel{
			{
				{title: "PPG Waveform", series: vs.PPGWaveform},
				{title: "Respiratory Waveform", series: vs.RespiratoryWaveform},
			},
			{
				{title: "Rolling Heart Rate", series: vs.RollingHeartRate, defaultUnit: "bpm"},
				{title: "Rolling Respiratory Rate", series: vs.RollingRespiratoryRate, defaultUnit: "rpm"},
			},
		}
		for r := 0; r < 2; r++ {
			for c := 0; c < cols; c++ {
				p, err := newPanelPlot(i+1, cells[r][c])
				if err != nil {
					return nil, err
				}
				plots[2*i+r][c] = p
			}
		}
	}

	img := vgimg.NewWith(
		vgimg.UseWH(chartWidth, chartHeightPerRow*vg.Length(rows)),
		vgimg.UseDPI(chartDPI),
	)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}

	canvases := plot.Align(plots, tiles, dc)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode chart png: %w", err)
	}
	return buf.Bytes(), nil
}

// ChartBase64 returns RenderChart's PNG as standard base64.
func ChartBase64(faces []detection.FaceResult) (string, error) {
	png, err := RenderChart(faces)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

func newPanelPlot(faceIndex int, cell panel) (*plot.Plot, error) {
	p := plot.New()
	if cell.series.Len() == 0 {
		p.HideAxes()
		return p, nil
	}

	p.Title.Text = fmt.Sprintf("Face %d - %s", faceIndex, cell.title)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = unitOr(cell.series.Unit, cell.defaultUnit)

	// Non-finite samples are gaps; they keep their frame index.
	pts := make(plotter.XYs, 0, cell.series.Len())
	for i, v := range cell.series.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: v})
	}
	if len(pts) == 0 {
		p.HideAxes()
		return p, nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("build %s line: %w", cell.title, err)
	}
	line.LineStyle.Color = lineColor
	line.LineStyle.Width = vg.Points(1)

	p.Add(plotter.NewGrid(), line)
	return p, nil
}
