package model

import "time"

// CategoryRule assigns a category to any transaction whose normalized
// description contains Keyword. Rules are evaluated in Position order.
type CategoryRule struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Keyword   string    `json:"keyword"`
	Category  string    `json:"category"`
	Polarity  Polarity  `json:"polarity"`
	Position  int       `json:"position"`
}
