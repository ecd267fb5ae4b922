package repository

import (
	"context"
	"fmt"
	"time"

	"xenoxify-sync-engine/internal/domain"
	"xenoxify-sync-engine/internal/infrastructure/repository/entity"
	"xenoxify-sync-engine/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoTenantRepository implements TenantRepository using MongoDB
type MongoTenantRepository struct {
	collection *mongo.Collection
}

// NewMongoTenantRepository creates a new MongoDB tenant repository
func NewMongoTenantRepository(db *mongo.Database) ports.TenantRepository {
	return &MongoTenantRepository{
		collection: db.Collection("tenants"),
	}
}

// GetByID retrieves a tenant by id
func (r *MongoTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var doc entity.MongoTenantDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListActive retrieves all active tenants
func (r *MongoTenantRepository) ListActive(ctx context.Context) ([]*domain.Tenant, error) {
	return r.list(ctx, bson.M{"status": string(domain.TenantStatusActive)})
}

// ListActiveUpdatedSince retrieves active tenants updated within the window
func (r *MongoTenantRepository) ListActiveUpdatedSince(ctx context.Context, since time.Time) ([]*domain.Tenant, error) {
	return r.list(ctx, bson.M{
		"status":     string(domain.TenantStatusActive),
		"updated_at": bson.M{"$gte": since},
	})
}

func (r *MongoTenantRepository) list(ctx context.Context, filter bson.M) ([]*domain.Tenant, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer cursor.Close(ctx)

	var tenants []*domain.Tenant
	for cursor.Next(ctx) {
		var doc entity.MongoTenantDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode tenant: %w", err)
		}
		tenants = append(tenants, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return tenants, nil
}

// SetLastSyncedAt advances the tenant's sync watermark. This is the only
// tenant field the sync engine writes.
func (r *MongoTenantRepository) SetLastSyncedAt(ctx context.Context, id string, syncedAt time.Time) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_synced_at": syncedAt}},
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant watermark: %w", err)
	}
	return nil
}
