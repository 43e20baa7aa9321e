package export

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okian/runboard/internal/domain/model"
)

const (
	chartWidth  = 800
	chartHeight = 400
)

// PointsSeries returns the player's cumulative points by run date. Runs with
// an unreadable date are skipped; runs on the same day are merged.
func PointsSeries(runs []model.Run) ([]time.Time, []float64) {
	byDay := make(map[time.Time]int)
	for _, r := range runs {
		if !r.Verified {
			continue
		}
		day, err := time.Parse(model.DateLayout, r.Date)
		if err != nil {
			continue
		}
		byDay[day] += r.Points
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	values := make([]float64, len(days))
	total := 0
	for i, d := range days {
		total += byDay[d]
		values[i] = float64(total)
	}
	return days, values
}

// PointsChart renders the player's cumulative points as a PNG line chart.
func PointsChart(player model.Player, runs []model.Run) ([]byte, error) {
	xs, ys := PointsSeries(runs)
	if len(xs) == 0 {
		return nil, fmt.Errorf("%w: player %s has no dated verified runs", ErrNoData, player.UID)
	}
	if len(xs) == 1 {
		// A range needs two points; start the line at zero the day before.
		xs = append([]time.Time{xs[0].AddDate(0, 0, -1)}, xs...)
		ys = append([]float64{0}, ys...)
	}

	color := drawing.ColorFromHex("1f77b4")
	if player.NameColor != "" {
		color = drawing.ColorFromHex(trimHash(player.NameColor))
	}

	name := player.DisplayName
	if name == "" {
		name = player.UID
	}
	graph := chart.Chart{
		Title:  name,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat(model.DateLayout),
		},
		YAxis: chart.YAxis{
			Name: "Points",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Total points",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: color,
					StrokeWidth: 2,
					DotWidth:    4,
					DotColor:    color,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func trimHash(s string) string {
	if len(s) > 0 && s[0] == '#' {
		return s[1:]
	}
	return s
}
