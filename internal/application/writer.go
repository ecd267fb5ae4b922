package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/ports"

	"github.com/rs/zerolog"
)

// MappingError marks a record whose mandatory fields could not be parsed.
// It is terminal for that single record only; the surrounding page and run
// continue with the next record.
type MappingError struct {
	Entity domain.EntityType
	Detail string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("malformed %s record: %s", e.Entity, e.Detail)
}

// UpsertWriter maps one raw upstream record into the local schema and
// performs an idempotent upsert keyed by (external id, tenant id). Missing
// optional fields fall back to neutral defaults; only an unparseable record
// identity fails the record.
type UpsertWriter struct {
	store  ports.EntityRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewUpsertWriter creates a new upsert writer
func NewUpsertWriter(store ports.EntityRepository, logger zerolog.Logger) *UpsertWriter {
	return &UpsertWriter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Write applies one raw record for the tenant. Safe to call any number of
// times with the same record.
func (w *UpsertWriter) Write(ctx context.Context, tenantID string, entity domain.EntityType, raw json.RawMessage) error {
	switch entity {
	case domain.EntityProducts:
		return w.writeProduct(ctx, tenantID, raw)
	case domain.EntityCustomers:
		return w.writeCustomer(ctx, tenantID, raw)
	case domain.EntityOrders:
		return w.writeOrder(ctx, tenantID, raw)
	default:
		return fmt.Errorf("unknown entity type %q", entity)
	}
}

type productPayload struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	BodyHTML    string `json:"body_html"`
	Vendor      string `json:"vendor"`
	ProductType string `json:"product_type"`
	Handle      string `json:"handle"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func (w *UpsertWriter) writeProduct(ctx context.Context, tenantID string, raw json.RawMessage) error {
	var p productPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return &MappingError{Entity: domain.EntityProducts, Detail: err.Error()}
	}
	if p.ID == 0 {
		return &MappingError{Entity: domain.EntityProducts, Detail: "missing id"}
	}
	return w.store.UpsertProduct(ctx, &domain.Product{
		ExternalID:  p.ID,
		TenantID:    tenantID,
		Title:       p.Title,
		BodyHTML:    p.BodyHTML,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Handle:      p.Handle,
		Status:      p.Status,
		CreatedAt:   parseUpstreamTime(p.CreatedAt),
		UpdatedAt:   parseUpstreamTime(p.UpdatedAt),
		Raw:         raw,
	})
}

type customerPayload struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	TotalSpent  string `json:"total_spent"`
	OrdersCount int    `json:"orders_count"`
	State       string `json:"state"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func (w *UpsertWriter) writeCustomer(ctx context.Context, tenantID string, raw json.RawMessage) error {
	var c customerPayload
	if err := json.Unmarshal(raw, &c); err != nil {
		return &MappingError{Entity: domain.EntityCustomers, Detail: err.Error()}
	}
	if c.ID == 0 {
		return &MappingError{Entity: domain.EntityCustomers, Detail: "missing id"}
	}
	return w.store.UpsertCustomer(ctx, &domain.Customer{
		ExternalID:  c.ID,
		TenantID:    tenantID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Phone:       c.Phone,
		TotalSpent:  parseAmount(c.TotalSpent),
		OrdersCount: c.OrdersCount,
		State:       c.State,
		CreatedAt:   parseUpstreamTime(c.CreatedAt),
		UpdatedAt:   parseUpstreamTime(c.UpdatedAt),
		Raw:         raw,
	})
}

type orderPayload struct {
	ID          int64  `json:"id"`
	OrderNumber int64  `json:"order_number"`
	TotalPrice  string `json:"total_price"`
	Currency    string `json:"currency"`
	Customer    *struct {
		ID int64 `json:"id"`
	} `json:"customer"`
	FinancialStatus   string `json:"financial_status"`
	FulfillmentStatus string `json:"fulfillment_status"`
	CreatedAt         string `json:"created_at"`
}

func (w *UpsertWriter) writeOrder(ctx context.Context, tenantID string, raw json.RawMessage) error {
	var o orderPayload
	if err := json.Unmarshal(raw, &o); err != nil {
		return &MappingError{Entity: domain.EntityOrders, Detail: err.Error()}
	}
	if o.ID == 0 {
		return &MappingError{Entity: domain.EntityOrders, Detail: "missing id"}
	}

	// Guest checkouts have no customer; the denormalized reference stays nil.
	var customerID *int64
	if o.Customer != nil && o.Customer.ID != 0 {
		id := o.Customer.ID
		customerID = &id
	}

	return w.store.UpsertOrder(ctx, &domain.Order{
		ExternalID:        o.ID,
		TenantID:          tenantID,
		OrderNumber:       o.OrderNumber,
		TotalPrice:        parseAmount(o.TotalPrice),
		Currency:          o.Currency,
		CustomerID:        customerID,
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		CreatedAt:         parseUpstreamTime(o.CreatedAt),
		ProcessedAt:       w.now(),
		Raw:               raw,
	})
}

// parseAmount parses an upstream money string ("10.50"), falling back to a
// zero amount when the field is missing or unreadable.
func parseAmount(value string) float64 {
	if value == "" {
		return 0
	}
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return amount
}

// parseUpstreamTime parses a platform timestamp, returning the zero time when
// the field is missing or unreadable.
func parseUpstreamTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
