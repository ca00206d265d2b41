package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	earningCollection       = "earnings"
	campaignCollection      = "donation_campaigns"
	advertisementCollection = "advertisements"
	paidFundCollection      = "paid_funds"
	adminCollection         = "admins"
)

// Earning record states
const (
	earningAvailable = "available"
	earningSettled   = "settled"
)

// sessionAware is embedded by every repository taking part in the unit of work
type sessionAware struct {
	session mongo.Session
}

func (s *sessionAware) SetTransaction(tx interface{}) {
	session, _ := tx.(mongo.Session)
	s.session = session
}

func (s *sessionAware) GetTransaction() interface{} { return s.session }

func (s *sessionAware) IsTransactional() bool { return s.session != nil }

func (s *sessionAware) getContext(ctx context.Context) context.Context {
	if s.session != nil {
		return mongo.NewSessionContext(ctx, s.session)
	}
	return ctx
}

// MongoEarningRepository updates the earning records behind claims
type MongoEarningRepository struct {
	sessionAware
	collection *mongo.Collection
}

func NewMongoEarningRepository(database *mongo.Database) *MongoEarningRepository {
	return &MongoEarningRepository{collection: database.Collection(earningCollection)}
}

func (r *MongoEarningRepository) MarkSettled(ctx context.Context, variant workflow.Variant, ids []string, requestID string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx = r.getContext(ctx)

	_, err := r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "variant": string(variant)},
		bson.M{"$set": bson.M{
			"status":     earningSettled,
			"request_id": requestID,
			"settled_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to settle earnings: %w", err)
	}
	return nil
}

func (r *MongoEarningRepository) Release(ctx context.Context, variant workflow.Variant, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx = r.getContext(ctx)

	_, err := r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "variant": string(variant)},
		bson.M{
			"$set":   bson.M{"status": earningAvailable},
			"$unset": bson.M{"request_id": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to release earnings: %w", err)
	}
	return nil
}

type campaignDoc struct {
	ID              string               `bson:"_id"`
	Title           string               `bson:"title"`
	OwnerID         string               `bson:"owner_id"`
	AdvertisementID string               `bson:"advertisement_id,omitempty"`
	ImagePublicIDs  []string             `bson:"image_public_ids,omitempty"`
	RaisedAmount    primitive.Decimal128 `bson:"raised_amount"`
	Currency        string               `bson:"currency"`
	CreatedAt       time.Time            `bson:"created_at"`
}

// MongoCampaignRepository reads and deletes donation campaigns
type MongoCampaignRepository struct {
	sessionAware
	collection *mongo.Collection
}

func NewMongoCampaignRepository(database *mongo.Database) *MongoCampaignRepository {
	return &MongoCampaignRepository{collection: database.Collection(campaignCollection)}
}

func (r *MongoCampaignRepository) GetByID(ctx context.Context, id string) (*aggregate.Campaign, error) {
	ctx = r.getContext(ctx)

	var doc campaignDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("campaign %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	raised, err := fromDecimal128(doc.RaisedAmount)
	if err != nil {
		return nil, err
	}
	return &aggregate.Campaign{
		ID:              doc.ID,
		Title:           doc.Title,
		OwnerID:         doc.OwnerID,
		AdvertisementID: doc.AdvertisementID,
		ImagePublicIDs:  doc.ImagePublicIDs,
		RaisedAmount:    raised,
		Currency:        doc.Currency,
		CreatedAt:       doc.CreatedAt,
	}, nil
}

func (r *MongoCampaignRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(r.getContext(ctx), r.collection, "campaign", id)
}

type advertisementDoc struct {
	ID             string    `bson:"_id"`
	CampaignID     string    `bson:"campaign_id"`
	Title          string    `bson:"title"`
	ImagePublicIDs []string  `bson:"image_public_ids,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

// MongoAdvertisementRepository reads and deletes campaign advertisements
type MongoAdvertisementRepository struct {
	sessionAware
	collection *mongo.Collection
}

func NewMongoAdvertisementRepository(database *mongo.Database) *MongoAdvertisementRepository {
	return &MongoAdvertisementRepository{collection: database.Collection(advertisementCollection)}
}

func (r *MongoAdvertisementRepository) GetByID(ctx context.Context, id string) (*aggregate.Advertisement, error) {
	ctx = r.getContext(ctx)

	var doc advertisementDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("advertisement %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get advertisement: %w", err)
	}
	return &aggregate.Advertisement{
		ID:             doc.ID,
		CampaignID:     doc.CampaignID,
		Title:          doc.Title,
		ImagePublicIDs: doc.ImagePublicIDs,
		CreatedAt:      doc.CreatedAt,
	}, nil
}

func (r *MongoAdvertisementRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(r.getContext(ctx), r.collection, "advertisement", id)
}

type paidFundDoc struct {
	ID              string               `bson:"_id"`
	RequestID       string               `bson:"request_id"`
	CampaignID      string               `bson:"campaign_id"`
	CampaignTitle   string               `bson:"campaign_title,omitempty"`
	AdvertisementID string               `bson:"advertisement_id,omitempty"`
	RequesterID     string               `bson:"requester_id"`
	RequesterName   string               `bson:"requester_name"`
	RequesterEmail  string               `bson:"requester_email"`
	Amount          primitive.Decimal128 `bson:"amount"`
	Currency        string               `bson:"currency"`
	PaymentNote     string               `bson:"payment_note,omitempty"`
	PaidBy          string               `bson:"paid_by"`
	PaidAt          time.Time            `bson:"paid_at"`
}

// MongoPaidFundRepository appends the permanent paid-fund audit entries
type MongoPaidFundRepository struct {
	sessionAware
	collection *mongo.Collection
}

func NewMongoPaidFundRepository(database *mongo.Database) *MongoPaidFundRepository {
	return &MongoPaidFundRepository{collection: database.Collection(paidFundCollection)}
}

func (r *MongoPaidFundRepository) Save(ctx context.Context, fund *aggregate.PaidFund) error {
	ctx = r.getContext(ctx)

	amount, err := toDecimal128(fund.Amount)
	if err != nil {
		return err
	}
	doc := paidFundDoc{
		ID:              fund.ID,
		RequestID:       fund.RequestID,
		CampaignID:      fund.CampaignID,
		CampaignTitle:   fund.CampaignTitle,
		AdvertisementID: fund.AdvertisementID,
		RequesterID:     fund.RequesterID,
		RequesterName:   fund.RequesterName,
		RequesterEmail:  fund.RequesterEmail,
		Amount:          amount,
		Currency:        fund.Currency,
		PaymentNote:     fund.PaymentNote,
		PaidBy:          fund.PaidBy,
		PaidAt:          fund.PaidAt,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save paid fund: %w", err)
	}
	return nil
}

func (r *MongoPaidFundRepository) GetByRequestID(ctx context.Context, requestID string) (*aggregate.PaidFund, error) {
	ctx = r.getContext(ctx)

	var doc paidFundDoc
	if err := r.collection.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("paid fund for %s: %w", requestID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get paid fund: %w", err)
	}
	amount, err := fromDecimal128(doc.Amount)
	if err != nil {
		return nil, err
	}
	return &aggregate.PaidFund{
		ID:              doc.ID,
		RequestID:       doc.RequestID,
		CampaignID:      doc.CampaignID,
		CampaignTitle:   doc.CampaignTitle,
		AdvertisementID: doc.AdvertisementID,
		RequesterID:     doc.RequesterID,
		RequesterName:   doc.RequesterName,
		RequesterEmail:  doc.RequesterEmail,
		Amount:          amount,
		Currency:        doc.Currency,
		PaymentNote:     doc.PaymentNote,
		PaidBy:          doc.PaidBy,
		PaidAt:          doc.PaidAt,
	}, nil
}

type adminDoc struct {
	ID             string     `bson:"_id"`
	Name           string     `bson:"name"`
	Email          string     `bson:"email"`
	HashedPassword string     `bson:"hashed_password"`
	Role           string     `bson:"role"`
	IsActive       bool       `bson:"is_active"`
	LastLoginAt    *time.Time `bson:"last_login_at,omitempty"`
	Version        int        `bson:"version"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

// MongoAdminRepository stores console accounts
type MongoAdminRepository struct {
	sessionAware
	collection *mongo.Collection
}

func NewMongoAdminRepository(database *mongo.Database) *MongoAdminRepository {
	return &MongoAdminRepository{collection: database.Collection(adminCollection)}
}

func (r *MongoAdminRepository) Save(ctx context.Context, a *aggregate.Admin) error {
	ctx = r.getContext(ctx)

	doc := adminDoc{
		ID:             a.ID(),
		Name:           a.Name(),
		Email:          a.Email(),
		HashedPassword: a.HashedPassword(),
		Role:           string(a.Role()),
		IsActive:       a.IsActive(),
		LastLoginAt:    a.LastLoginAt(),
		Version:        a.Version(),
		CreatedAt:      a.CreatedAt(),
		UpdatedAt:      a.UpdatedAt(),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": a.ID()}, doc, opts); err != nil {
		return fmt.Errorf("failed to save admin: %w", err)
	}
	return nil
}

func (r *MongoAdminRepository) GetByEmail(ctx context.Context, email string) (*aggregate.Admin, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *MongoAdminRepository) GetByID(ctx context.Context, id string) (*aggregate.Admin, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoAdminRepository) findOne(ctx context.Context, filter bson.M) (*aggregate.Admin, error) {
	ctx = r.getContext(ctx)

	var doc adminDoc
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("admin: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return aggregate.ReconstructAdmin(
		doc.ID, doc.Name, doc.Email, doc.HashedPassword,
		aggregate.AdminRole(doc.Role), doc.IsActive, doc.LastLoginAt,
		doc.Version, doc.CreatedAt, doc.UpdatedAt,
	), nil
}

func deleteByID(ctx context.Context, c *mongo.Collection, kind, id string) error {
	res, err := c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, repository.ErrNotFound)
	}
	return nil
}
