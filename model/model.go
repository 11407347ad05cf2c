package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a suffix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// GenerateTransactionIDStr builds a human-readable transaction key such as
// TXN-1A2B3C4D5E6F. The 48 random bits keep collisions unlikely well past
// millions of generated keys.
func GenerateTransactionIDStr(prefix string) string {
	if prefix == "" {
		prefix = "TXN"
	}
	short := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
	return fmt.Sprintf("%s-%s", prefix, short)
}

// AnalysisStage is the furthest point a decision cycle reached.
type AnalysisStage string

const (
	StageNotFound         AnalysisStage = "NOT_FOUND"
	StageDecided          AnalysisStage = "DECIDED"
	StageExplained        AnalysisStage = "EXPLAINED"
	StageExplainedSkipped AnalysisStage = "EXPLAINED_SKIPPED"
)

// AnalysisResult summarises one decision cycle for a transaction.
type AnalysisResult struct {
	TransactionID  string        `json:"transaction_id"`
	Status         Status        `json:"status"`
	Probability    float64       `json:"probability"`
	RawLabel       int           `json:"raw_label"`
	HasExplanation bool          `json:"has_explanation"`
	Stage          AnalysisStage `json:"stage"`
}
