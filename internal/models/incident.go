package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity - уровень критичности инцидента
type Severity string

const (
	SeverityCritical Severity = "Critique"
	SeverityHigh     Severity = "Élevée"
	SeverityMedium   Severity = "Moyenne"
	SeverityLow      Severity = "Faible"
)

// DefaultSeverity используется, если клиент не передал уровень
const DefaultSeverity = SeverityMedium

// Severities возвращает допустимые значения в порядке убывания критичности
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

func (s Severity) IsValid() bool {
	for _, v := range Severities() {
		if s == v {
			return true
		}
	}
	return false
}

type Incident struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Severity       Severity  `json:"severity"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	DocumentsCount int       `json:"documents_count"`
}

// IncidentDetail - инцидент вместе с приложенными документами
type IncidentDetail struct {
	Incident
	Documents []*Document `json:"documents"`
}
