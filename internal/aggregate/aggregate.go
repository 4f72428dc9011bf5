// Package aggregate turns a window of report records into reporting views.
// Every function is pure: identical input yields identical output, and
// nothing here touches the store or keeps state between calls.
package aggregate

import (
	"sort"

	"github.com/classboard/conduct-api/internal/models"
)

// Severity tiers derived from the score magnitude.
const (
	LevelHigh = "high"
	LevelMid  = "mid"
	LevelLow  = "low"
)

// Thresholds defines the inclusive lower bounds of the high and mid tiers.
// One set is configured per process and applied by every call site.
type Thresholds struct {
	High int
	Mid  int
}

// DefaultThresholds matches the canonical >=5 / >=3 tiering.
var DefaultThresholds = Thresholds{High: 5, Mid: 3}

// Classification is the derived type and severity of a single record.
type Classification struct {
	// Type is 表扬 for merits; demerits refine to 纪律违纪 / 卫生违纪 when a
	// violation kind is recorded, otherwise the generic 违纪.
	Type string `json:"type"`
	// Level is the severity tier: high, mid or low.
	Level string `json:"level"`
	// Label combines severity and the generic base, e.g. 重大表扬, 小违纪.
	Label string `json:"label"`
}

// Summary is the headline rollup of a record window.
type Summary struct {
	Total         int
	Positive      int
	Negative      int
	ActiveClasses int
}

// Classify derives the type and severity of one record. The high threshold
// wins before the mid one, both inclusive.
func Classify(r models.ReportRecord, th Thresholds) Classification {
	var base, typ string
	if r.IsAdd {
		base = "表扬"
		typ = base
	} else {
		base = "违纪"
		switch {
		case r.ViolationKind != nil && *r.ViolationKind == models.ViolationDiscipline:
			typ = "纪律违纪"
		case r.ViolationKind != nil && *r.ViolationKind == models.ViolationHygiene:
			typ = "卫生违纪"
		default:
			typ = base
		}
	}

	var level, prefix string
	switch {
	case r.Score >= th.High:
		level = LevelHigh
		prefix = "重大"
	case r.Score >= th.Mid:
		level = LevelMid
	default:
		level = LevelLow
		prefix = "小"
	}

	return Classification{Type: typ, Level: level, Label: prefix + base}
}

// Summarize counts the window partitioned by merit/demerit and the number
// of distinct classes that appear.
func Summarize(records []models.ReportRecord) Summary {
	s := Summary{Total: len(records)}
	classes := make(map[int]struct{})
	for _, r := range records {
		if r.IsAdd {
			s.Positive++
		} else {
			s.Negative++
		}
		classes[r.ClassID] = struct{}{}
	}
	s.ActiveClasses = len(classes)
	return s
}

// Rank groups records by class, accumulates the signed score and sorts
// descending by total. The sort is stable so classes with equal totals keep
// first-seen order. topK <= 0 returns the full ranking.
func Rank(records []models.ReportRecord, topK int) []models.ClassAggregate {
	index := make(map[int]int)
	ranking := make([]models.ClassAggregate, 0)

	for _, r := range records {
		i, ok := index[r.ClassID]
		if !ok {
			i = len(ranking)
			index[r.ClassID] = i
			ranking = append(ranking, models.ClassAggregate{ClassID: r.ClassID})
		}
		agg := &ranking[i]
		agg.ReportCount++
		if r.IsAdd {
			agg.TotalScore += r.Score
			agg.PositiveCount++
		} else {
			agg.TotalScore -= r.Score
			agg.NegativeCount++
		}
	}

	sort.SliceStable(ranking, func(a, b int) bool {
		return ranking[a].TotalScore > ranking[b].TotalScore
	})

	if topK > 0 && len(ranking) > topK {
		ranking = ranking[:topK]
	}
	return ranking
}

// TypeHistogram tallies classification labels. Labels that never occur are
// absent rather than zero-filled.
func TypeHistogram(records []models.ReportRecord, th Thresholds) map[string]int {
	hist := make(map[string]int)
	for _, r := range records {
		hist[Classify(r, th).Label]++
	}
	return hist
}

// Recent returns the n most recently submitted records. The input is not
// mutated; the stable sort keeps store order for equal timestamps.
func Recent(records []models.ReportRecord, n int) []models.ReportRecord {
	out := make([]models.ReportRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].SubmittedAt.After(out[b].SubmittedAt)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
