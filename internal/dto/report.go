package dto

import (
	"time"

	"github.com/classboard/conduct-api/internal/models"
)

// SubmitReportRequest is the submission payload. `isadd` is a pointer so a
// missing flag is distinguishable from an explicit false.
type SubmitReportRequest struct {
	Class      int    `json:"class" validate:"required,min=1,max=100"`
	IsAdd      *bool  `json:"isadd" validate:"required"`
	Score      int    `json:"changescore" validate:"required,min=1,max=20"`
	Note       string `json:"note" validate:"required"`
	Submitter  string `json:"submitter" validate:"required"`
	ReduceType string `json:"reducetype" validate:"omitempty,oneof=discipline hygiene"`
}

// SubmitReportResponse echoes the stored record identity plus the
// broadcast delivery count.
type SubmitReportResponse struct {
	ID          int64     `json:"id"`
	SubmitTime  time.Time `json:"submittime"`
	Database    string    `json:"database"`
	HeadTeacher string    `json:"headteacher,omitempty"`
	Delivered   int       `json:"delivered"`
}

// StatsSummary is the headline block of the today view.
type StatsSummary struct {
	Total         int `json:"total"`
	Positive      int `json:"positive"`
	Negative      int `json:"negative"`
	ActiveClasses int `json:"activeClasses"`
}

// TodayStatsResponse is the composed dashboard payload, rebuilt on every
// request from the day's records.
type TodayStatsResponse struct {
	Date          string                  `json:"date"`
	Summary       StatsSummary            `json:"summary"`
	TypeStats     map[string]int          `json:"typeStats"`
	ClassRanking  []models.ClassAggregate `json:"classRanking"`
	RecentReports []models.ReportRecord   `json:"recentReports"`
	Timestamp     time.Time               `json:"timestamp"`
}
