// Package model defines the core domain models used throughout the application.
package model

// ClassificationSource indicates which stage categorized a transaction.
type ClassificationSource string

// Classification source constants.
const (
	SourceNone     ClassificationSource = "NONE"
	SourceRule     ClassificationSource = "RULE"
	SourceSemantic ClassificationSource = "SEMANTIC"
	SourceUser     ClassificationSource = "USER"
)

// Valid reports whether s is a known source.
func (s ClassificationSource) Valid() bool {
	switch s {
	case SourceNone, SourceRule, SourceSemantic, SourceUser:
		return true
	}
	return false
}
