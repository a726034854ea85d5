package health

import (
	"context"
	"time"
)

type EntityType string

const (
	EntityStore      EntityType = "store"
	EntityLLM        EntityType = "llm_provider"
	EntityWebSearch  EntityType = "web_search"
	EntityWorkerPool EntityType = "worker_pool"
)

type Status string

const (
	StatusOk      Status = "OK"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

type HealthRecord struct {
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Status      Status     `json:"status"`
	LastMessage string     `json:"last_message"`
	LastChecked time.Time  `json:"last_checked"`
}

type Report struct {
	Status   Status         `json:"status"`
	Version  string         `json:"version"`
	ServerID string         `json:"server_id"`
	Checks   []HealthRecord `json:"checks"`
}

type IHealthUsecase interface {
	// Check probes every dependency. The report is OK only when every check is.
	Check(ctx context.Context) Report
}
