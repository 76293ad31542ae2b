package entity

import (
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoShopDoc represents a shop in MongoDB
type MongoShopDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Domain           string             `bson:"shopifyDomain"`
	AccessToken      string             `bson:"shopifyToken,omitempty"`
	Scopes           []string           `bson:"shopifyScopes,omitempty"`
	StorefrontToken  string             `bson:"storefrontToken,omitempty"`
	APIToken         string             `bson:"apiToken,omitempty"`
	ChargeID         uint64             `bson:"chargeId,omitempty"`
	Grandfathered    bool               `bson:"grandfathered"`
	Active           bool               `bson:"status"`
	PrivateAPIKey    string             `bson:"apiKey,omitempty"`
	PrivateAPISecret string             `bson:"apiSecret,omitempty"`
	Details          MongoShopDetails   `bson:"details"`
	DeletedAt        *time.Time         `bson:"deletedAt"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

// MongoShopDetails is the embedded descriptive shop data
type MongoShopDetails struct {
	GID                     string `bson:"gid,omitempty"`
	Name                    string `bson:"name,omitempty"`
	Email                   string `bson:"email,omitempty"`
	CustomerEmail           string `bson:"customerEmail,omitempty"`
	ShopOwner               string `bson:"shopOwner,omitempty"`
	PrimaryDomain           string `bson:"domain,omitempty"`
	City                    string `bson:"city,omitempty"`
	Province                string `bson:"province,omitempty"`
	Country                 string `bson:"country,omitempty"`
	CountryCode             string `bson:"countryCode,omitempty"`
	Currency                string `bson:"currency,omitempty"`
	MoneyFormat             string `bson:"moneyFormat,omitempty"`
	MoneyWithCurrencyFormat string `bson:"moneyWithCurrencyFormat,omitempty"`
	IANATimezone            string `bson:"ianaTimezone,omitempty"`
	PlanName                string `bson:"planName,omitempty"`
	PlanDisplayName         string `bson:"planDisplayName,omitempty"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoShopDoc) ToDomain() *domain.Shop {
	shop := &domain.Shop{
		Domain:           d.Domain,
		AccessToken:      d.AccessToken,
		Scopes:           d.Scopes,
		StorefrontToken:  d.StorefrontToken,
		APIToken:         d.APIToken,
		ChargeID:         d.ChargeID,
		Grandfathered:    d.Grandfathered,
		Active:           d.Active,
		PrivateAPIKey:    d.PrivateAPIKey,
		PrivateAPISecret: d.PrivateAPISecret,
		Details:          domain.ShopDetails(d.Details),
		DeletedAt:        d.DeletedAt,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if !d.ID.IsZero() {
		shop.ID = d.ID.Hex()
	}
	return shop
}

// MongoShopDocFromDomain converts a domain entity to a MongoDB document
func MongoShopDocFromDomain(shop *domain.Shop) *MongoShopDoc {
	doc := &MongoShopDoc{
		Domain:           shop.Domain,
		AccessToken:      shop.AccessToken,
		Scopes:           shop.Scopes,
		StorefrontToken:  shop.StorefrontToken,
		APIToken:         shop.APIToken,
		ChargeID:         shop.ChargeID,
		Grandfathered:    shop.Grandfathered,
		Active:           shop.Active,
		PrivateAPIKey:    shop.PrivateAPIKey,
		PrivateAPISecret: shop.PrivateAPISecret,
		Details:          MongoShopDetails(shop.Details),
		DeletedAt:        shop.DeletedAt,
		CreatedAt:        shop.CreatedAt,
		UpdatedAt:        shop.UpdatedAt,
	}

	if shop.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(shop.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}

// MongoWebhookDoc represents a logged webhook delivery
type MongoWebhookDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	DeliveryID string             `bson:"deliveryId"`
	Topic      string             `bson:"topic"`
	Shop       string             `bson:"shop"`
	WebhookID  string             `bson:"webhookId,omitempty"`
	APIVersion string             `bson:"apiVersion,omitempty"`
	Payload    string             `bson:"payload"`
	ReceivedAt time.Time          `bson:"receivedAt"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoWebhookDoc) ToDomain() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:         d.DeliveryID,
		Topic:      d.Topic,
		Shop:       d.Shop,
		WebhookID:  d.WebhookID,
		APIVersion: d.APIVersion,
		Payload:    []byte(d.Payload),
		ReceivedAt: d.ReceivedAt,
	}
}

// MongoWebhookDocFromDomain converts a domain entity to a MongoDB document
func MongoWebhookDocFromDomain(event *domain.WebhookEvent) *MongoWebhookDoc {
	return &MongoWebhookDoc{
		DeliveryID: event.ID,
		Topic:      event.Topic,
		Shop:       event.Shop,
		WebhookID:  event.WebhookID,
		APIVersion: event.APIVersion,
		Payload:    string(event.Payload),
		ReceivedAt: event.ReceivedAt,
	}
}
