package models

// ClassInfo maps a class number to its headteacher. Loaded from a static
// JSON file, not from the relational store.
type ClassInfo struct {
	ClassID     int    `json:"class"`
	HeadTeacher string `json:"headteacher"`
}
