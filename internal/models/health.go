package models

import "time"

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
	// StatusDisabled - зависимость не сконфигурирована и не влияет на итоговый статус
	StatusDisabled = "DISABLED"

	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// ProbeResult - состояние одной зависимости
type ProbeResult struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
	Bucket  string `json:"bucket,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func (p ProbeResult) OK() bool {
	return p.Status == StatusOK
}

// HealthReport агрегирует независимые проверки каталога, хранилища и кеша
type HealthReport struct {
	Status    string      `json:"status"`
	Database  ProbeResult `json:"database"`
	Storage   ProbeResult `json:"storage"`
	Cache     ProbeResult `json:"cache"`
	Timestamp time.Time   `json:"timestamp"`
}
