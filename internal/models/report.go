package models

import "time"

// ViolationKind refines a demerit report. It is never set on merits.
type ViolationKind string

const (
	ViolationDiscipline ViolationKind = "discipline"
	ViolationHygiene    ViolationKind = "hygiene"
)

// ReportRecord is one merit or demerit entry for a class. Records are
// immutable once inserted; there is no update or delete path.
type ReportRecord struct {
	ID            int64          `db:"id" json:"id"`
	ClassID       int            `db:"class" json:"class"`
	IsAdd         bool           `db:"isadd" json:"isadd"`
	Score         int            `db:"changescore" json:"changescore"`
	Note          string         `db:"note" json:"note"`
	Submitter     string         `db:"submitter" json:"submitter"`
	ViolationKind *ViolationKind `db:"reducetype" json:"reducetype,omitempty"`
	SubmittedAt   time.Time      `db:"submittime" json:"submittime"`
	DatePartition string         `db:"date_partition" json:"date_partition"`
}

// ClassAggregate is the per-class rollup for a ranking window. Derived on
// every request, never persisted.
type ClassAggregate struct {
	ClassID       int    `json:"class"`
	HeadTeacher   string `json:"headteacher,omitempty"`
	TotalScore    int    `json:"totalScore"`
	ReportCount   int    `json:"reportCount"`
	PositiveCount int    `json:"positiveCount"`
	NegativeCount int    `json:"negativeCount"`
}

// DatePartitionOf derives the partition key from a submit timestamp. The
// timestamp carries the reference timezone, so the same instant always maps
// to the same partition on both the write and read paths.
func DatePartitionOf(t time.Time) string {
	return t.Format("2006-01-02")
}
