package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/Davydov/gonuts/mcmc"
)

// histBins is the number of histogram bins.
const histBins = 50

// savePlots creates a trace plot and a histogram for every monitored
// variable. Files are named prefix_name_trace.png and
// prefix_name_hist.png.
func savePlots(prefix string, names map[mcmc.VariableID]string, samples *mcmc.Samples, monitored []mcmc.VariableID) error {
	for _, id := range monitored {
		name := names[id]
		values := samples.Get(id)
		if len(values) == 0 {
			continue
		}

		p := plot.New()
		p.Title.Text = name
		p.X.Label.Text = "iteration"
		p.Y.Label.Text = name
		pts := make(plotter.XYs, len(values))
		for i, v := range values {
			pts[i].X = float64(i)
			pts[i].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		p.Add(line)
		fn := fmt.Sprintf("%s_%s_trace.png", prefix, name)
		if err := p.Save(6*vg.Inch, 4*vg.Inch, fn); err != nil {
			return err
		}
		log.Infof("Trace plot saved to %s", fn)

		h := plot.New()
		h.Title.Text = name
		hist, err := plotter.NewHist(plotter.Values(values), histBins)
		if err != nil {
			return err
		}
		hist.Normalize(1)
		h.Add(hist)
		fn = fmt.Sprintf("%s_%s_hist.png", prefix, name)
		if err := h.Save(4*vg.Inch, 4*vg.Inch, fn); err != nil {
			return err
		}
		log.Infof("Histogram saved to %s", fn)
	}
	return nil
}
