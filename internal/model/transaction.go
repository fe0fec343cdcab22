package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Transaction represents a single financial transaction from any source.
type Transaction struct {
	Date         time.Time
	CreatedAt    time.Time
	ID           string
	Description  string // Raw transaction description as exported by the bank
	AccountID    string
	Hash         string
	Category     string
	OriginalLine string // Source record, kept for debugging imports
	Source       ClassificationSource
	Polarity     Polarity
	Amount       float64 // Signed: negative for money leaving the account
	Confidence   float64
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		strings.ToLower(strings.TrimSpace(t.Description)),
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// IsUncategorized reports whether neither classification stage assigned a category.
func (t *Transaction) IsUncategorized() bool {
	return t.Category == "" || t.Category == Uncategorized
}
