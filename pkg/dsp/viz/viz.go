// Package viz serves live diagnostic plots of the receive pipeline over
// HTTP: the current energy spectrum with the carrier positions marked, and
// the recent history of symbol quality scores. It exists for threshold
// tuning against real rooms and hardware.
package viz

import (
	"image/color"

	"gonum.org/v1/plot"
)

// Producer renders one diagnostic image.
type Producer interface {
	Name() string
	Render() ([]byte, error)
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.BackgroundColor = color.Black
	for _, c := range []*color.Color{
		&p.Title.TextStyle.Color,
		&p.X.Label.TextStyle.Color, &p.Y.Label.TextStyle.Color,
		&p.X.Color, &p.Y.Color,
		&p.X.Tick.Color, &p.Y.Tick.Color,
		&p.X.Tick.Label.Color, &p.Y.Tick.Label.Color,
		&p.Legend.TextStyle.Color,
	} {
		*c = color.White
	}
	return p
}
