package incident

import (
	"context"
	"math"
	"sort"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
)

type Share struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type StatusShare struct {
	Status  entity.IncidentStatus `json:"status"`
	Display string                `json:"display"`
	Share
}

type LevelShare struct {
	Level int `json:"level"`
	Share
}

type NamedShare struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Share
}

type Statistics struct {
	TotalCount    int               `json:"total_count"`
	ByStatus      []StatusShare     `json:"status_statistics"`
	ByLevel       []LevelShare      `json:"level_statistics"`
	Critical      Share             `json:"critical"`
	NonCritical   Share             `json:"non_critical"`
	AverageLevel  float64           `json:"average_level"`
	ByPoint       []NamedShare      `json:"point_statistics"`
	ByResponsible []NamedShare      `json:"responsible_statistics"`
	Incidents     []entity.Incident `json:"incidents"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func share(count, total int) Share {
	if total == 0 {
		return Share{Count: count}
	}
	return Share{Count: count, Percentage: round2(float64(count) / float64(total) * 100)}
}

// Statistics はフィルタに一致したインシデントを状態・レベル・ポイント・担当者ごとに集計する
func (e *Engine) Statistics(ctx context.Context, f repository.IncidentFilter) (*Statistics, error) {
	incidents, err := e.repo.ListIncidents(ctx, f)
	if err != nil {
		return nil, err
	}
	total := len(incidents)
	stats := &Statistics{TotalCount: total, Incidents: incidents}

	statusCounts := map[entity.IncidentStatus]int{}
	levelCounts := map[int]int{}
	pointCounts := map[int64]int{}
	responsibleCounts := map[int64]int{}
	critical, levelSum := 0, 0
	for _, inc := range incidents {
		statusCounts[inc.Status]++
		levelCounts[inc.Level]++
		pointCounts[inc.PointID]++
		if inc.HasResponsible() {
			responsibleCounts[inc.ResponsibleUserID]++
		}
		if inc.IsCritical {
			critical++
		}
		levelSum += inc.Level
	}

	for _, st := range entity.IncidentStatuses {
		stats.ByStatus = append(stats.ByStatus, StatusShare{Status: st, Display: st.Label(), Share: share(statusCounts[st], total)})
	}
	for level := 0; level <= entity.MaxEscalationLevel; level++ {
		if n := levelCounts[level]; n > 0 {
			stats.ByLevel = append(stats.ByLevel, LevelShare{Level: level, Share: share(n, total)})
		}
	}
	stats.Critical = share(critical, total)
	stats.NonCritical = share(total-critical, total)
	if total > 0 {
		stats.AverageLevel = round2(float64(levelSum) / float64(total))
	}

	for id, n := range pointCounts {
		name := ""
		if p, err := e.repo.DutyPointByID(ctx, id); err == nil {
			name = p.Name
		}
		stats.ByPoint = append(stats.ByPoint, NamedShare{ID: id, Name: name, Share: share(n, total)})
	}
	for id, n := range responsibleCounts {
		stats.ByResponsible = append(stats.ByResponsible, NamedShare{ID: id, Name: e.userName(ctx, id), Share: share(n, total)})
	}
	sortByCount(stats.ByPoint)
	sortByCount(stats.ByResponsible)
	return stats, nil
}

func sortByCount(s []NamedShare) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Count != s[j].Count {
			return s[i].Count > s[j].Count
		}
		return s[i].ID < s[j].ID
	})
}
