package viz

import (
	"bytes"
	"math"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SpectrumPlotter plots the most recent energy snapshot in dB, with the
// carrier frequencies drawn as vertical markers. Update is called from the
// pipeline goroutine, Render from the HTTP server.
type SpectrumPlotter struct {
	name     string
	binSize  float64
	carriers []int

	mu   sync.Mutex
	bins []float64
}

func NewSpectrumPlotter(name string, binSize float64, carriers []int) *SpectrumPlotter {
	return &SpectrumPlotter{name: name, binSize: binSize, carriers: carriers}
}

func (s *SpectrumPlotter) Name() string {
	return s.name
}

func (s *SpectrumPlotter) Update(bins []float64) {
	s.mu.Lock()
	if cap(s.bins) < len(bins) {
		s.bins = make([]float64, len(bins))
	}
	s.bins = s.bins[:len(bins)]
	copy(s.bins, bins)
	s.mu.Unlock()
}

func (s *SpectrumPlotter) Render() ([]byte, error) {
	s.mu.Lock()
	bins := append([]float64(nil), s.bins...)
	s.mu.Unlock()
	if len(bins) == 0 {
		return nil, nil
	}

	p := newPlot(s.name, "Frequency (Hz)", "Energy (dB)")
	p.Y.Min = -100
	p.Y.Max = 0
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(bins))
	for i, e := range bins {
		db := -100.0
		if e > 1e-5 {
			db = 20 * math.Log10(e)
		}
		xys[i] = plotter.XY{X: float64(i) * s.binSize, Y: db}
	}
	if err := plotutil.AddLines(p, "spectrum", xys); err != nil {
		return nil, err
	}

	for _, freq := range s.carriers {
		marker := plotter.XYs{
			{X: float64(freq), Y: -100},
			{X: float64(freq), Y: 0},
		}
		if err := plotutil.AddLines(p, marker); err != nil {
			return nil, err
		}
	}

	return render(p)
}

// QualityPlotter keeps a rolling window of symbol quality scores. Rejected
// snapshots show up as zero, which makes threshold trouble easy to spot.
type QualityPlotter struct {
	name string
	size int

	mu     sync.Mutex
	scores []float64
}

func NewQualityPlotter(name string, size int) *QualityPlotter {
	return &QualityPlotter{name: name, size: size}
}

func (q *QualityPlotter) Name() string {
	return q.name
}

func (q *QualityPlotter) Append(score int) {
	q.mu.Lock()
	q.scores = append(q.scores, float64(score))
	if len(q.scores) > q.size {
		q.scores = q.scores[len(q.scores)-q.size:]
	}
	q.mu.Unlock()
}

func (q *QualityPlotter) Render() ([]byte, error) {
	q.mu.Lock()
	scores := append([]float64(nil), q.scores...)
	q.mu.Unlock()
	if len(scores) == 0 {
		return nil, nil
	}

	p := newPlot(q.name, "Snapshot", "Quality")
	p.Y.Min = 0
	p.Y.Max = 100
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(scores))
	for i, s := range scores {
		xys[i] = plotter.XY{X: float64(i), Y: s}
	}
	if err := plotutil.AddScatters(p, "quality", xys); err != nil {
		return nil, err
	}

	return render(p)
}

func render(p *plot.Plot) ([]byte, error) {
	w, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
