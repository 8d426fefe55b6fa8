// Package plotting wraps gonum/plot behind the small figure API bound into
// snippets as `plt`.
//
// A Session owns every figure created during one execution. Drawing calls
// record the first error on the figure and Save reports it, so snippets only
// need to check one error.
package plotting

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Default figure size in inches, used when Figure gets non-positive dimensions.
const (
	DefaultWidth  = 10
	DefaultHeight = 6
)

// ErrClosed is returned when drawing on a figure that was already closed.
var ErrClosed = errors.New("figure is closed")

// Session tracks open figures.
type Session struct {
	mu   sync.Mutex
	figs map[*Figure]struct{}
}

func NewSession() *Session {
	return &Session{figs: map[*Figure]struct{}{}}
}

// Figure opens a new figure of the given size in inches.
func (s *Session) Figure(widthIn, heightIn float64) *Figure {
	if widthIn <= 0 {
		widthIn = DefaultWidth
	}
	if heightIn <= 0 {
		heightIn = DefaultHeight
	}
	p := plot.New()
	p.Add(plotter.NewGrid())
	f := &Figure{s: s, p: p, w: vg.Length(widthIn) * vg.Inch, h: vg.Length(heightIn) * vg.Inch}
	s.mu.Lock()
	s.figs[f] = struct{}{}
	s.mu.Unlock()
	return f
}

// CloseAll releases every open figure.
func (s *Session) CloseAll() {
	s.mu.Lock()
	figs := s.figs
	s.figs = map[*Figure]struct{}{}
	s.mu.Unlock()
	for f := range figs {
		f.markClosed()
	}
}

// Open reports how many figures are still open.
func (s *Session) Open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.figs)
}

func (s *Session) forget(f *Figure) {
	s.mu.Lock()
	delete(s.figs, f)
	s.mu.Unlock()
}

// Figure is a single chart.
type Figure struct {
	s      *Session
	mu     sync.Mutex
	p      *plot.Plot
	w, h   vg.Length
	err    error
	closed bool
	series int
}

func (f *Figure) Title(s string) *Figure {
	return f.do(func(p *plot.Plot) error { p.Title.Text = s; return nil })
}

func (f *Figure) XLabel(s string) *Figure {
	return f.do(func(p *plot.Plot) error { p.X.Label.Text = s; return nil })
}

func (f *Figure) YLabel(s string) *Figure {
	return f.do(func(p *plot.Plot) error { p.Y.Label.Text = s; return nil })
}

// Hist draws a histogram of values with the given number of bins (<= 0 picks 10).
func (f *Figure) Hist(values []float64, bins int) *Figure {
	if bins <= 0 {
		bins = 10
	}
	return f.do(func(p *plot.Plot) error {
		v := finite(values)
		if len(v) == 0 {
			return errors.New("hist: no numeric values")
		}
		h, err := plotter.NewHist(v, bins)
		if err != nil {
			return fmt.Errorf("hist: %w", err)
		}
		h.FillColor = f.nextColor()
		p.Add(h)
		return nil
	})
}

// Scatter draws one point per (x, y) pair; pairs with NaN are skipped.
func (f *Figure) Scatter(xs, ys []float64) *Figure {
	return f.do(func(p *plot.Plot) error {
		pts, err := xyPairs(xs, ys)
		if err != nil {
			return fmt.Errorf("scatter: %w", err)
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("scatter: %w", err)
		}
		sc.GlyphStyle.Color = f.nextColor()
		p.Add(sc)
		return nil
	})
}

// Line connects (x, y) pairs in the order given.
func (f *Figure) Line(xs, ys []float64) *Figure {
	return f.do(func(p *plot.Plot) error {
		pts, err := xyPairs(xs, ys)
		if err != nil {
			return fmt.Errorf("line: %w", err)
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("line: %w", err)
		}
		l.LineStyle.Color = f.nextColor()
		l.LineStyle.Width = vg.Points(1.5)
		p.Add(l)
		return nil
	})
}

// Bar draws one bar per label.
func (f *Figure) Bar(labels []string, values []float64) *Figure {
	return f.do(func(p *plot.Plot) error {
		if len(labels) != len(values) {
			return fmt.Errorf("bar: %d labels for %d values", len(labels), len(values))
		}
		if len(values) == 0 {
			return errors.New("bar: no values")
		}
		vals := make(plotter.Values, len(values))
		for i, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			vals[i] = v
		}
		width := f.w / vg.Length(len(values)+1) / 2
		if width > vg.Points(40) {
			width = vg.Points(40)
		}
		b, err := plotter.NewBarChart(vals, width)
		if err != nil {
			return fmt.Errorf("bar: %w", err)
		}
		b.Color = f.nextColor()
		b.LineStyle.Width = 0
		p.Add(b)
		p.NominalX(labels...)
		return nil
	})
}

// FitLine overlays y = intercept + slope*x across the current x range.
func (f *Figure) FitLine(slope, intercept float64) *Figure {
	return f.Curve(func(x float64) float64 { return intercept + slope*x })
}

// Curve overlays an arbitrary function of x, e.g. a fitted polynomial.
func (f *Figure) Curve(fn func(float64) float64) *Figure {
	return f.do(func(p *plot.Plot) error {
		c := plotter.NewFunction(fn)
		c.LineStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		c.LineStyle.Width = vg.Points(2)
		c.Samples = 200
		p.Add(c)
		return nil
	})
}

// Err returns the first error recorded by a drawing call.
func (f *Figure) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Save renders the figure to path; the format follows the extension.
// Missing parent directories are created.
func (f *Figure) Save(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.closed {
		return ErrClosed
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
	}
	if err := f.p.Save(f.w, f.h, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Close releases the figure.
func (f *Figure) Close() {
	f.markClosed()
	f.s.forget(f)
}

func (f *Figure) markClosed() {
	f.mu.Lock()
	f.closed = true
	f.p = nil
	f.mu.Unlock()
}

func (f *Figure) do(fn func(p *plot.Plot) error) *Figure {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f
	}
	if f.closed {
		f.err = ErrClosed
		return f
	}
	f.err = fn(f.p)
	return f
}

// palette is the matplotlib tab10 cycle.
var palette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
}

// nextColor must be called with f.mu held.
func (f *Figure) nextColor() color.Color {
	c := palette[f.series%len(palette)]
	f.series++
	return c
}

func finite(values []float64) plotter.Values {
	out := make(plotter.Values, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func xyPairs(xs, ys []float64) (plotter.XYs, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("got %d x values and %d y values", len(xs), len(ys))
	}
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	if len(pts) == 0 {
		return nil, errors.New("no numeric pairs")
	}
	return pts, nil
}
