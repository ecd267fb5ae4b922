package domain

import "time"

// EntityType identifies one syncable upstream collection.
type EntityType string

const (
	EntityProducts  EntityType = "products"
	EntityCustomers EntityType = "customers"
	EntityOrders    EntityType = "orders"
)

func (e EntityType) String() string { return string(e) }

// SyncEntityOrder is the fixed stage sequence of a full tenant run. Orders
// come last because they reference customer ids written in earlier stages.
var SyncEntityOrder = []EntityType{EntityProducts, EntityCustomers, EntityOrders}

// SyncMode distinguishes a full resync from a narrow time-bounded one.
type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// SyncStage is the terminal state reached by a tenant run.
type SyncStage string

const (
	StageComplete SyncStage = "complete"
	StageAborted  SyncStage = "aborted"
)

// RecordFailure describes one record that could not be applied. Record
// failures never terminate a stage; they bound the blast radius of a single
// bad record.
type RecordFailure struct {
	Entity     EntityType `json:"entity"`
	ExternalID string     `json:"external_id,omitempty"`
	Reason     string     `json:"reason"`
}

// EntitySyncReport summarizes one (tenant, entity) stage. Err is the terminal
// fetch error, if any; record-level failures are listed separately and do not
// make the stage terminal.
type EntitySyncReport struct {
	Entity   EntityType      `json:"entity"`
	Synced   int             `json:"synced"`
	Failures []RecordFailure `json:"failures,omitempty"`
	Err      error           `json:"-"`
}

// TenantSyncReport summarizes one tenant run across all attempted stages.
type TenantSyncReport struct {
	RunID      string             `json:"run_id"`
	TenantID   string             `json:"tenant_id"`
	ShopDomain string             `json:"shop_domain"`
	Mode       SyncMode           `json:"mode"`
	Stage      SyncStage          `json:"stage"`
	Entities   []EntitySyncReport `json:"entities"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Completed reports whether every attempted stage finished without a
// terminal error. Only a completed run may advance the tenant watermark.
func (r *TenantSyncReport) Completed() bool {
	for _, e := range r.Entities {
		if e.Err != nil {
			return false
		}
	}
	return true
}

// TotalSynced is the record count applied across all stages of the run.
func (r *TenantSyncReport) TotalSynced() int {
	n := 0
	for _, e := range r.Entities {
		n += e.Synced
	}
	return n
}
