package stats

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"itsch/internal/model"
)

var variantColors = []color.RGBA{
	{R: 120, G: 120, B: 120, A: 255},
	{R: 230, G: 140, B: 20, A: 255},
	{R: 30, G: 140, B: 30, A: 255},
	{R: 30, G: 60, B: 200, A: 255},
}

// WriteReceptionPlot renders the first-sequence reception series of each
// variant into one comparison PNG. sampleRate converts the x axis to
// seconds.
func WriteReceptionPlot(path string, records []model.EvaluationRecord, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	p := plot.New()
	p.Title.Text = "Packet reception probability"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "PRP"

	plotted := 0
	for i, record := range records {
		if len(record.Receptions) == 0 {
			continue
		}
		series := record.Receptions[0]
		xys := make(plotter.XYs, len(series))
		for t, v := range series {
			xys[t].X = float64(t) / float64(sampleRate)
			xys[t].Y = v
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = variantColors[i%len(variantColors)]
		line.Width = vg.Points(0.5)
		p.Add(line)
		p.Legend.Add(record.Variant, line)
		plotted++
	}
	if plotted == 0 {
		return fmt.Errorf("no reception series to plot")
	}

	return p.Save(6*vg.Inch, 3*vg.Inch, path)
}

// WriteLossPlot renders the per-iteration training loss terms of one
// policy into a PNG.
func WriteLossPlot(path string, metrics []model.TrainingMetric) error {
	if len(metrics) == 0 {
		return fmt.Errorf("no metrics to plot")
	}
	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Loss"

	terms := []struct {
		name   string
		pick   func(model.TrainingMetric) float64
		shade  color.RGBA
	}{
		{"cross-entropy", func(m model.TrainingMetric) float64 { return m.CrossEntropy }, variantColors[3]},
		{"penalty", func(m model.TrainingMetric) float64 { return m.Penalty }, variantColors[1]},
		{"total", func(m model.TrainingMetric) float64 { return m.Total }, variantColors[2]},
	}
	for _, term := range terms {
		xys := make(plotter.XYs, len(metrics))
		for i, m := range metrics {
			xys[i].X = float64(m.Iteration)
			xys[i].Y = term.pick(m)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = term.shade
		line.Width = vg.Points(0.8)
		p.Add(line)
		p.Legend.Add(term.name, line)
	}

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
