package livehttp

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"talon/internal/logger"
)

// handleEquityChart 把余额快照渲染成 HTML 折线图，总额与峰值两条线。
func (r *router) handleEquityChart(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	snapshots, err := r.store.BalanceHistory(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(snapshots) == 0 {
		c.String(http.StatusOK, "暂无余额快照")
		return
	}

	xs := make([]string, 0, len(snapshots))
	total := make([]opts.LineData, 0, len(snapshots))
	peak := make([]opts.LineData, 0, len(snapshots))
	for _, s := range snapshots {
		xs = append(xs, s.TakenAt.Format("01-02 15:04"))
		total = append(total, opts.LineData{Value: s.Total})
		peak = append(peak, opts.LineData{Value: s.Peak})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Talon Equity",
			Width:     "1200px",
			Height:    "520px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "账户余额曲线"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xs).
		AddSeries("Total", total, charts.WithLineStyleOpts(opts.LineStyle{Width: 2})).
		AddSeries("Peak", peak, charts.WithLineStyleOpts(opts.LineStyle{Width: 1, Type: "dashed"}))

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(c.Writer); err != nil {
		logger.Warnf("http: rendering equity chart failed: %v", err)
	}
}
