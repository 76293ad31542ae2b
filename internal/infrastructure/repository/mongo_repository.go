package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoShopRepository implements ShopRepository using MongoDB
type MongoShopRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoShopRepository creates a new MongoDB shop repository
func NewMongoShopRepository(db *mongo.Database) *MongoShopRepository {
	return &MongoShopRepository{
		collection: db.Collection("shops"),
		now:        time.Now,
	}
}

// EnsureIndexes creates the unique domain index and the api token lookup index
func (r *MongoShopRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "shopifyDomain", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "apiToken", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create shop indexes: %w", err)
	}
	return nil
}

// FindByDomain retrieves a shop by domain, optionally including soft deleted shops
func (r *MongoShopRepository) FindByDomain(ctx context.Context, shopDomain string, withTrashed bool) (*domain.Shop, error) {
	return r.findOne(ctx, shopFilter(bson.M{"shopifyDomain": shopDomain}, withTrashed))
}

// FindByAPIToken retrieves a live shop by its internal api token
func (r *MongoShopRepository) FindByAPIToken(ctx context.Context, apiToken string) (*domain.Shop, error) {
	if apiToken == "" {
		return nil, nil
	}
	return r.findOne(ctx, shopFilter(bson.M{"apiToken": apiToken}, false))
}

// FirstOrCreate returns the shop for the domain, inserting an empty one when missing
func (r *MongoShopRepository) FirstOrCreate(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	now := r.now().UTC()
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	update := bson.M{"$setOnInsert": bson.M{
		"shopifyDomain": shopDomain,
		"grandfathered": false,
		"status":        false,
		"deletedAt":     nil,
		"createdAt":     now,
		"updatedAt":     now,
	}}

	var doc entity.MongoShopDoc
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"shopifyDomain": shopDomain}, update, opts).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to first-or-create shop: %w", err)
	}
	return doc.ToDomain(), nil
}

// Save saves or updates a shop
func (r *MongoShopRepository) Save(ctx context.Context, shop *domain.Shop) error {
	doc := entity.MongoShopDocFromDomain(shop)
	doc.UpdatedAt = r.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"shopifyDomain": shop.Domain}
	// _id is immutable once the document exists
	set := *doc
	set.ID = primitive.NilObjectID
	update := bson.M{"$set": set, "$setOnInsert": bson.M{"_id": doc.ID}}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}

	if shop.ID == "" {
		shop.ID = doc.ID.Hex()
	}
	shop.CreatedAt = doc.CreatedAt
	shop.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r *MongoShopRepository) findOne(ctx context.Context, filter bson.M) (*domain.Shop, error) {
	var doc entity.MongoShopDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return doc.ToDomain(), nil
}

func shopFilter(filter bson.M, withTrashed bool) bson.M {
	if !withTrashed {
		filter["deletedAt"] = nil
	}
	return filter
}

// MongoWebhookEventLog implements WebhookEventLog using MongoDB
type MongoWebhookEventLog struct {
	collection *mongo.Collection
}

// NewMongoWebhookEventLog creates a new MongoDB webhook event log
func NewMongoWebhookEventLog(db *mongo.Database) *MongoWebhookEventLog {
	return &MongoWebhookEventLog{collection: db.Collection("webhook_events")}
}

// LogWebhook logs a webhook event
func (l *MongoWebhookEventLog) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	doc := entity.MongoWebhookDocFromDomain(event)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = time.Now().UTC()
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = doc.CreatedAt
	}

	if _, err := l.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}
	return nil
}

// RecentWebhooks lists the latest deliveries for a shop, newest first
func (l *MongoWebhookEventLog) RecentWebhooks(ctx context.Context, shopDomain string, limit int64) ([]*domain.WebhookEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "receivedAt", Value: -1}}).SetLimit(limit)
	cursor, err := l.collection.Find(ctx, bson.M{"shop": shopDomain}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*domain.WebhookEvent
	for cursor.Next(ctx) {
		var doc entity.MongoWebhookDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode webhook: %w", err)
		}
		events = append(events, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return events, nil
}
