package report

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pyama86/dispatchd/incident"
	"github.com/russross/blackfriday/v2"
)

func Title(period string) string {
	return fmt.Sprintf("Incident statistics %s", period)
}

// Render は集計結果を Markdown にする
func Render(period string, stats *incident.Statistics) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
# %s

## Summary

| Total | Critical | Non critical | Average level |
|---|---|---|---|
| %d | %s | %s | %.2f |

## By status

| Status | Count | %% |
|---|---|---|
`, Title(period), stats.TotalCount, shareCell(stats.Critical), shareCell(stats.NonCritical), stats.AverageLevel)
	for _, s := range stats.ByStatus {
		fmt.Fprintf(&b, "| %s | %d | %.2f |\n", s.Display, s.Count, s.Percentage)
	}

	b.WriteString("\n## By level\n\n| Level | Count | % |\n|---|---|---|\n")
	for _, l := range stats.ByLevel {
		fmt.Fprintf(&b, "| %d | %d | %.2f |\n", l.Level, l.Count, l.Percentage)
	}

	b.WriteString("\n## By duty point\n\n| Point | Count | % |\n|---|---|---|\n")
	for _, p := range stats.ByPoint {
		fmt.Fprintf(&b, "| %s | %d | %.2f |\n", escapeCell(p.Name), p.Count, p.Percentage)
	}

	b.WriteString("\n## By responsible user\n\n| User | Count | % |\n|---|---|---|\n")
	for _, r := range stats.ByResponsible {
		fmt.Fprintf(&b, "| %s | %d | %.2f |\n", escapeCell(r.Name), r.Count, r.Percentage)
	}

	b.WriteString("\n## Incidents\n\n| ID | Name | Status | Level | Created |\n|---|---|---|---|---|\n")
	for _, i := range stats.Incidents {
		fmt.Fprintf(&b, "| %d | %s | %s | %d | %s |\n", i.ID, escapeCell(i.Name), i.DisplayStatus(), i.Level, i.CreatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

// HTML は Confluence の storage 形式に載せられるよう無害化した HTML を返す
func HTML(markdown string) string {
	unsafe := blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions))
	return string(bluemonday.UGCPolicy().SanitizeBytes(unsafe))
}

func shareCell(s incident.Share) string {
	return fmt.Sprintf("%d (%.2f%%)", s.Count, s.Percentage)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
