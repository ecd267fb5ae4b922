package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSyncRepository persists the tenant-partitioned mirror of upstream
// entities. Every upsert is keyed by (tenant_id, external_id); created_at is
// written through $setOnInsert so later passes can never overwrite it.
type MongoSyncRepository struct {
	productsCollection  *mongo.Collection
	customersCollection *mongo.Collection
	ordersCollection    *mongo.Collection
}

// NewMongoSyncRepository creates a new MongoDB sync repository
func NewMongoSyncRepository(db *mongo.Database) *MongoSyncRepository {
	return &MongoSyncRepository{
		productsCollection:  db.Collection("products"),
		customersCollection: db.Collection("customers"),
		ordersCollection:    db.Collection("orders"),
	}
}

var _ ports.EntityRepository = (*MongoSyncRepository)(nil)
var _ ports.InsightsRepository = (*MongoSyncRepository)(nil)

// EnsureIndexes creates the unique composite index backing upsert identity on
// each entity collection. Safe to call on every startup.
func (r *MongoSyncRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	for _, coll := range []*mongo.Collection{r.productsCollection, r.customersCollection, r.ordersCollection} {
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// UpsertProduct inserts or updates a product row
func (r *MongoSyncRepository) UpsertProduct(ctx context.Context, p *domain.Product) error {
	set := bson.M{
		"title":        p.Title,
		"body_html":    p.BodyHTML,
		"vendor":       p.Vendor,
		"product_type": p.ProductType,
		"handle":       p.Handle,
		"status":       p.Status,
		"updated_at":   p.UpdatedAt,
		"raw":          rawToBSON(p.Raw),
	}
	return r.upsert(ctx, r.productsCollection, p.TenantID, p.ExternalID, set, p.CreatedAt)
}

// UpsertCustomer inserts or updates a customer row
func (r *MongoSyncRepository) UpsertCustomer(ctx context.Context, c *domain.Customer) error {
	set := bson.M{
		"first_name":   c.FirstName,
		"last_name":    c.LastName,
		"email":        c.Email,
		"phone":        c.Phone,
		"total_spent":  c.TotalSpent,
		"orders_count": c.OrdersCount,
		"state":        c.State,
		"updated_at":   c.UpdatedAt,
		"raw":          rawToBSON(c.Raw),
	}
	return r.upsert(ctx, r.customersCollection, c.TenantID, c.ExternalID, set, c.CreatedAt)
}

// UpsertOrder inserts or updates an order row
func (r *MongoSyncRepository) UpsertOrder(ctx context.Context, o *domain.Order) error {
	set := bson.M{
		"order_number":       o.OrderNumber,
		"total_price":        o.TotalPrice,
		"currency":           o.Currency,
		"customer_id":        o.CustomerID,
		"financial_status":   o.FinancialStatus,
		"fulfillment_status": o.FulfillmentStatus,
		"processed_at":       o.ProcessedAt,
		"raw":                rawToBSON(o.Raw),
	}
	return r.upsert(ctx, r.ordersCollection, o.TenantID, o.ExternalID, set, o.CreatedAt)
}

func (r *MongoSyncRepository) upsert(ctx context.Context, coll *mongo.Collection, tenantID string, externalID int64, set bson.M, createdAt time.Time) error {
	filter := bson.M{
		"tenant_id":   tenantID,
		"external_id": externalID,
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": createdAt},
		// synced_at tracks the last time any pass touched the row.
		"$currentDate": bson.M{"synced_at": true},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert %s record %d: %w", coll.Name(), externalID, err)
	}
	return nil
}

// rawToBSON converts the verbatim upstream payload into a document Mongo can
// index into. A payload that fails to convert is dropped rather than failing
// the row; the projected fields are already mapped.
func rawToBSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return doc
}

type orderSummaryTotals struct {
	Orders  int64   `bson:"orders"`
	Revenue float64 `bson:"revenue"`
}

type orderSummaryBucket struct {
	ID      string  `bson:"_id"`
	Count   int64   `bson:"count"`
	Revenue float64 `bson:"revenue"`
}

type orderSummaryFacets struct {
	Totals   []orderSummaryTotals `bson:"totals"`
	ByStatus []orderSummaryBucket `bson:"by_status"`
	ByDay    []orderSummaryBucket `bson:"by_day"`
}

// OrderSummary aggregates dashboard figures for one tenant from the local
// mirror, bounded to orders created since the given time.
func (r *MongoSyncRepository) OrderSummary(ctx context.Context, tenantID string, since time.Time) (*domain.InsightsSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"tenant_id":  tenantID,
			"created_at": bson.M{"$gte": since},
		}}},
		{{Key: "$facet", Value: bson.M{
			"totals": bson.A{
				bson.M{"$group": bson.M{
					"_id":     nil,
					"orders":  bson.M{"$sum": 1},
					"revenue": bson.M{"$sum": "$total_price"},
				}},
			},
			"by_status": bson.A{
				bson.M{"$group": bson.M{
					"_id":   "$financial_status",
					"count": bson.M{"$sum": 1},
				}},
			},
			"by_day": bson.A{
				bson.M{"$group": bson.M{
					"_id":     bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at"}},
					"revenue": bson.M{"$sum": "$total_price"},
				}},
				bson.M{"$sort": bson.M{"_id": 1}},
			},
		}}},
	}

	cursor, err := r.ordersCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate order summary: %w", err)
	}
	defer cursor.Close(ctx)

	var facets []orderSummaryFacets
	if err := cursor.All(ctx, &facets); err != nil {
		return nil, fmt.Errorf("failed to decode order summary: %w", err)
	}

	summary := &domain.InsightsSummary{
		TenantID:    tenantID,
		OrderStatus: make(map[string]int64),
		SalesTrend:  make(map[string]float64),
	}
	if len(facets) > 0 {
		f := facets[0]
		if len(f.Totals) > 0 {
			summary.TotalOrders = f.Totals[0].Orders
			summary.TotalRevenue = f.Totals[0].Revenue
		}
		for _, b := range f.ByStatus {
			summary.OrderStatus[b.ID] = b.Count
		}
		for _, b := range f.ByDay {
			summary.SalesTrend[b.ID] = b.Revenue
		}
	}
	if summary.TotalOrders > 0 {
		summary.AverageOrderValue = summary.TotalRevenue / float64(summary.TotalOrders)
	}

	customers, err := r.customersCollection.CountDocuments(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to count customers: %w", err)
	}
	summary.TotalCustomers = customers

	return summary, nil
}

type customerSpendRow struct {
	CustomerID int64   `bson:"_id"`
	Total      float64 `bson:"total"`
	Orders     int64   `bson:"orders"`
}

// TopCustomers ranks a tenant's customers by cumulative order value.
func (r *MongoSyncRepository) TopCustomers(ctx context.Context, tenantID string, limit int) ([]domain.CustomerSpend, error) {
	if limit <= 0 {
		limit = 5
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"tenant_id":   tenantID,
			"customer_id": bson.M{"$ne": nil},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$customer_id",
			"total":  bson.M{"$sum": "$total_price"},
			"orders": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"total": -1}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := r.ordersCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top customers: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []customerSpendRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode top customers: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CustomerID)
	}
	custCursor, err := r.customersCollection.Find(ctx, bson.M{
		"tenant_id":   tenantID,
		"external_id": bson.M{"$in": ids},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	defer custCursor.Close(ctx)

	details := make(map[int64]*domain.Customer)
	for custCursor.Next(ctx) {
		var c domain.Customer
		if err := custCursor.Decode(&c); err != nil {
			return nil, fmt.Errorf("failed to decode customer: %w", err)
		}
		details[c.ExternalID] = &c
	}
	if err := custCursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	result := make([]domain.CustomerSpend, 0, len(rows))
	for _, row := range rows {
		spend := domain.CustomerSpend{
			CustomerID: row.CustomerID,
			TotalSpent: row.Total,
			Orders:     row.Orders,
		}
		if c, ok := details[row.CustomerID]; ok {
			spend.FirstName = c.FirstName
			spend.LastName = c.LastName
			spend.Email = c.Email
		}
		result = append(result, spend)
	}
	return result, nil
}
