// Package render draws histograms as interactive HTML charts.
//
// Projections become bar charts and two-dimensional histograms become
// heat maps sampled on a regular grid. Page collects every chart of a
// histogram into one document.
package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/fixedhist"
	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/persistence"
)

// ErrNotPlanar is returned when a heat map is requested for a histogram
// that is not two-dimensional.
var ErrNotPlanar = errors.New("render: heat map needs a two-dimensional histogram")

const (
	chartWidth    = "100%"
	chartHeight   = "480px"
	defaultBins   = 50
	defaultGrid   = 64
	labelFontSize = 10
)

type options struct {
	title   string
	density bool
	bins    int
	grid    int
}

// Option configures rendering.
type Option func(*options)

// WithTitle sets the chart or page title.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

// WithDensity divides contents by bin width (projections) or bin volume
// (heat maps).
func WithDensity(density bool) Option {
	return func(o *options) { o.density = density }
}

// WithBins sets the number of projection bins used by Page.
func WithBins(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bins = n
		}
	}
}

// WithGrid sets the number of heat map cells per axis.
func WithGrid(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.grid = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{bins: defaultBins, grid: defaultGrid}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func label(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// Projection renders a one-dimensional histogram as a bar chart.
func Projection(p *fixedhist.Hist1D, optFns ...Option) *charts.Bar {
	o := applyOptions(optFns)

	labels := make([]string, p.NumBins())
	data := make([]opts.BarData, p.NumBins())
	for b := range p.NumBins() {
		labels[b] = label(p.BinCenter(b))
		v := p.Content(b)
		if o.density {
			v /= p.BinWidth()
		}
		data[b] = opts.BarData{Value: v}
	}

	yName := "content"
	if o.density {
		yName = "density"
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: o.title, Subtitle: p.Name()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: p.Name(), Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	bar.SetXAxis(labels).AddSeries(p.Name(), data,
		charts.WithBarChartOpts(opts.BarChart{BarCategoryGap: "0%"}),
	)

	return bar
}

// Heatmap samples a two-dimensional histogram at the centres of an
// n-by-n grid over its limits.
func Heatmap(h *hyperhist.Histogram, optFns ...Option) (*charts.HeatMap, error) {
	if h.Dimension() != 2 {
		return nil, fmt.Errorf("%w: dimension %d", ErrNotPlanar, h.Dimension())
	}
	o := applyOptions(optFns)
	n := o.grid
	limits := h.Limits()
	dx := limits.Width(0) / float64(n)
	dy := limits.Width(1) / float64(n)

	xs := make([]string, n)
	ys := make([]string, n)
	points := make(geom.PointSet, 0, n*n)
	for i := range n {
		xs[i] = label(limits.Min(0) + (float64(i)+0.5)*dx)
		ys[i] = label(limits.Min(1) + (float64(i)+0.5)*dy)
	}
	for i := range n {
		for j := range n {
			points = append(points, geom.NewPoint(
				limits.Min(0)+(float64(i)+0.5)*dx,
				limits.Min(1)+(float64(j)+0.5)*dy,
			))
		}
	}

	vals, err := cellValues(h, points, o.density)
	if err != nil {
		return nil, err
	}

	var maxVal float64
	data := make([]opts.HeatMapData, 0, len(points))
	for k, v := range vals {
		maxVal = max(maxVal, v)
		data = append(data, opts.HeatMapData{Value: [3]any{k / n, k % n, v}})
	}

	names := h.Names()
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: o.title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: names.Name(0), Type: "category", Data: xs,
			AxisLabel: &opts.AxisLabel{FontSize: labelFontSize},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: names.Name(1), Type: "category", Data: ys,
			AxisLabel: &opts.AxisLabel{FontSize: labelFontSize},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true), Min: 0, Max: float32(maxVal),
			InRange: &opts.VisualMapInRange{Color: []string{"#f7fbff", "#6baed6", "#08306b"}},
			Orient:  "horizontal", Left: "center", Bottom: "2%",
		}),
	)
	hm.AddSeries(h.Name(), data)

	return hm, nil
}

func cellValues(h *hyperhist.Histogram, points geom.PointSet, density bool) ([]float64, error) {
	if !density {
		return h.Vals(points)
	}
	bins, err := h.Binning().BinNums(points)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(bins))
	for i, b := range bins {
		if b == h.NumBins() {
			continue
		}
		c, err := h.BinContent(b)
		if err != nil {
			return nil, err
		}
		vol, err := h.BinVolume(b)
		if err != nil {
			return nil, err
		}
		if vol > 0 {
			out[i] = c / vol
		}
	}
	return out, nil
}

// Page renders every projection of h and, for two-dimensional histograms,
// a heat map into w as a single HTML page.
func Page(w io.Writer, h *hyperhist.Histogram, optFns ...Option) error {
	o := applyOptions(optFns)

	page := components.NewPage()
	if o.title != "" {
		page.PageTitle = o.title
	}

	projections, err := h.ProjectAll(o.bins)
	if err != nil {
		return err
	}
	for _, p := range projections {
		page.AddCharts(Projection(p, optFns...))
	}

	if h.Dimension() == 2 {
		hm, err := Heatmap(h, optFns...)
		if err != nil {
			return err
		}
		page.AddCharts(hm)
	}

	return page.Render(w)
}

// ToFile writes the Page of h to path. The file is replaced atomically.
func ToFile(h *hyperhist.Histogram, path string, optFns ...Option) error {
	return persistence.SaveToFile(path, func(w io.Writer) error {
		return Page(w, h, optFns...)
	})
}
