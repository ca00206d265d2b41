package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/event"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	payoutRequestCollection      = "payout_requests"
	payoutRequestEventCollection = "payout_request_events"
)

type requesterDoc struct {
	ID    string `bson:"id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

type sourceItemDoc struct {
	ID       string               `bson:"id"`
	Amount   primitive.Decimal128 `bson:"amount"`
	Origin   string               `bson:"origin"`
	EarnedAt time.Time            `bson:"earned_at"`
}

type bankAccountDoc struct {
	BankName      string `bson:"bank_name"`
	AccountNumber string `bson:"account_number"`
	AccountName   string `bson:"account_name"`
	Branch        string `bson:"branch"`
}

type exchangeAccountDoc struct {
	Provider  string `bson:"provider"`
	AccountID string `bson:"account_id"`
}

type payoutRequestDoc struct {
	ID          string               `bson:"_id"`
	Variant     string               `bson:"variant"`
	Requester   requesterDoc         `bson:"requester"`
	SourceItems []sourceItemDoc      `bson:"source_items"`
	TotalAmount primitive.Decimal128 `bson:"total_amount"`
	Currency    string               `bson:"currency"`
	Bank        *bankAccountDoc      `bson:"bank_account,omitempty"`
	Exchange    *exchangeAccountDoc  `bson:"exchange_account,omitempty"`
	CampaignID  string               `bson:"campaign_id,omitempty"`
	Status      string               `bson:"status"`
	AdminNote   string               `bson:"admin_note,omitempty"`
	ProcessedBy string               `bson:"processed_by,omitempty"`
	ProcessedAt *time.Time           `bson:"processed_at,omitempty"`
	PaidBy      string               `bson:"paid_by,omitempty"`
	PaidAt      *time.Time           `bson:"paid_at,omitempty"`
	PaymentNote string               `bson:"payment_note,omitempty"`
	Version     int                  `bson:"version"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

type eventDoc struct {
	AggregateID  string    `bson:"aggregate_id"`
	EventType    string    `bson:"event_type"`
	EventVersion int       `bson:"event_version"`
	OccurredAt   time.Time `bson:"occurred_at"`
	EventData    bson.M    `bson:"event_data"`
}

// MongoPayoutRequestRepository implements PayoutRequestRepository with MongoDB persistence
type MongoPayoutRequestRepository struct {
	sessionAware
	entityCollection *mongo.Collection
	eventCollection  *mongo.Collection
}

// NewMongoPayoutRequestRepository creates a new MongoDB payout request repository
func NewMongoPayoutRequestRepository(database *mongo.Database) *MongoPayoutRequestRepository {
	return &MongoPayoutRequestRepository{
		entityCollection: database.Collection(payoutRequestCollection),
		eventCollection:  database.Collection(payoutRequestEventCollection),
	}
}

// Save stores the request document and appends its uncommitted events
func (r *MongoPayoutRequestRepository) Save(ctx context.Context, req *aggregate.PayoutRequest) error {
	ctx = r.getContext(ctx)

	events := req.GetUncommittedEvents()
	expectedVersion := req.Version() - len(events)

	doc, err := toPayoutRequestDoc(req)
	if err != nil {
		return err
	}

	if expectedVersion == 0 {
		if _, err := r.entityCollection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("payout request %s: %w", req.ID(), repository.ErrVersionConflict)
			}
			return fmt.Errorf("failed to insert payout request: %w", err)
		}
	} else {
		filter := bson.M{"_id": req.ID(), "version": expectedVersion}
		res, err := r.entityCollection.ReplaceOne(ctx, filter, doc)
		if err != nil {
			return fmt.Errorf("failed to save payout request: %w", err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("payout request %s changed since it was loaded: %w", req.ID(), repository.ErrVersionConflict)
		}
	}

	if err := r.saveEvents(ctx, req.ID(), events, expectedVersion); err != nil {
		return err
	}
	req.MarkEventsAsCommitted()
	return nil
}

func (r *MongoPayoutRequestRepository) saveEvents(ctx context.Context, aggregateID string, events []event.DomainEvent, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(events))
	for i, e := range events {
		data, err := eventData(e)
		if err != nil {
			return err
		}
		docs = append(docs, eventDoc{
			AggregateID:  aggregateID,
			EventType:    e.EventType(),
			EventVersion: expectedVersion + i + 1,
			OccurredAt:   e.OccurredAt(),
			EventData:    data,
		})
	}

	if _, err := r.eventCollection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to save payout request events: %w", err)
	}
	return nil
}

// GetByID retrieves a request of the given variant
func (r *MongoPayoutRequestRepository) GetByID(ctx context.Context, variant workflow.Variant, id string) (*aggregate.PayoutRequest, error) {
	ctx = r.getContext(ctx)

	var doc payoutRequestDoc
	err := r.entityCollection.FindOne(ctx, bson.M{"_id": id, "variant": string(variant)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("payout request %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payout request: %w", err)
	}
	return fromPayoutRequestDoc(doc)
}

func listFilter(f repository.PayoutRequestFilter) bson.M {
	filter := bson.M{"variant": string(f.Variant)}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"requester.name": pattern},
			bson.M{"requester.email": pattern},
		}
	}
	return filter
}

// List returns one page of requests, most recent first, and the total match count
func (r *MongoPayoutRequestRepository) List(ctx context.Context, f repository.PayoutRequestFilter) ([]*aggregate.PayoutRequest, int64, error) {
	ctx = r.getContext(ctx)
	filter := listFilter(f)

	total, err := r.entityCollection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count payout requests: %w", err)
	}

	opts := options.Find().
		SetSkip(int64(f.Offset)).
		SetLimit(int64(f.Limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.entityCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find payout requests: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []payoutRequestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode payout requests: %w", err)
	}

	requests := make([]*aggregate.PayoutRequest, 0, len(docs))
	for _, doc := range docs {
		req, err := fromPayoutRequestDoc(doc)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	return requests, total, nil
}

// Stats groups the variant's requests by status
func (r *MongoPayoutRequestRepository) Stats(ctx context.Context, variant workflow.Variant) (map[workflow.Status]repository.StatusTotals, error) {
	ctx = r.getContext(ctx)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"variant": string(variant)}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$total_amount"},
		}}},
	}

	cursor, err := r.entityCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payout stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string               `bson:"_id"`
		Count  int64                `bson:"count"`
		Total  primitive.Decimal128 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode payout stats: %w", err)
	}

	stats := make(map[workflow.Status]repository.StatusTotals, len(rows))
	for _, row := range rows {
		total, err := fromDecimal128(row.Total)
		if err != nil {
			return nil, err
		}
		stats[workflow.Status(row.Status)] = repository.StatusTotals{Count: row.Count, TotalAmount: total}
	}
	return stats, nil
}

// CountOlderThan counts requests of a status created before a cut-off
func (r *MongoPayoutRequestRepository) CountOlderThan(ctx context.Context, variant workflow.Variant, status workflow.Status, before time.Time) (int64, error) {
	ctx = r.getContext(ctx)

	n, err := r.entityCollection.CountDocuments(ctx, bson.M{
		"variant":    string(variant),
		"status":     string(status),
		"created_at": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count payout requests: %w", err)
	}
	return n, nil
}

// Delete removes a request document; its event trail is kept
func (r *MongoPayoutRequestRepository) Delete(ctx context.Context, id string) error {
	ctx = r.getContext(ctx)

	res, err := r.entityCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete payout request: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("payout request %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// GetEvents returns the audit trail of a request in version order
func (r *MongoPayoutRequestRepository) GetEvents(ctx context.Context, aggregateID string) ([]repository.EventRecord, error) {
	ctx = r.getContext(ctx)

	opts := options.Find().SetSort(bson.D{{Key: "event_version", Value: 1}})
	cursor, err := r.eventCollection.Find(ctx, bson.M{"aggregate_id": aggregateID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer cursor.Close(ctx)

	var records []repository.EventRecord
	for cursor.Next(ctx) {
		var raw struct {
			AggregateID  string    `bson:"aggregate_id"`
			EventType    string    `bson:"event_type"`
			EventVersion int       `bson:"event_version"`
			OccurredAt   time.Time `bson:"occurred_at"`
			EventData    bson.M    `bson:"event_data"`
		}
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		records = append(records, repository.EventRecord{
			AggregateID:  raw.AggregateID,
			EventType:    raw.EventType,
			EventVersion: raw.EventVersion,
			OccurredAt:   raw.OccurredAt,
			Data:         map[string]interface{}(raw.EventData),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return records, nil
}

// eventData flattens an event through its JSON tags so decimal amounts are
// stored as strings
func eventData(e event.DomainEvent) (bson.M, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.EventType(), err)
	}
	var data bson.M
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.EventType(), err)
	}
	return data, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("invalid amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %s: %w", v, err)
	}
	return d, nil
}

func toPayoutRequestDoc(req *aggregate.PayoutRequest) (payoutRequestDoc, error) {
	total, err := toDecimal128(req.TotalAmount())
	if err != nil {
		return payoutRequestDoc{}, err
	}

	items := req.SourceItems()
	itemDocs := make([]sourceItemDoc, len(items))
	for i, item := range items {
		amount, err := toDecimal128(item.Amount)
		if err != nil {
			return payoutRequestDoc{}, err
		}
		itemDocs[i] = sourceItemDoc{ID: item.ID, Amount: amount, Origin: item.Origin, EarnedAt: item.EarnedAt}
	}

	rq := req.Requester()
	doc := payoutRequestDoc{
		ID:          req.ID(),
		Variant:     string(req.Variant()),
		Requester:   requesterDoc{ID: rq.ID, Name: rq.Name, Email: rq.Email},
		SourceItems: itemDocs,
		TotalAmount: total,
		Currency:    req.Currency(),
		CampaignID:  req.CampaignID(),
		Status:      string(req.Status()),
		AdminNote:   req.AdminNote(),
		ProcessedBy: req.ProcessedBy(),
		ProcessedAt: req.ProcessedAt(),
		PaidBy:      req.PaidBy(),
		PaidAt:      req.PaidAt(),
		PaymentNote: req.PaymentNote(),
		Version:     req.Version(),
		CreatedAt:   req.CreatedAt(),
		UpdatedAt:   req.UpdatedAt(),
	}

	dest := req.Destination()
	if b := dest.Bank; b != nil {
		doc.Bank = &bankAccountDoc{BankName: b.BankName, AccountNumber: b.AccountNumber, AccountName: b.AccountName, Branch: b.Branch}
	}
	if x := dest.Exchange; x != nil {
		doc.Exchange = &exchangeAccountDoc{Provider: x.Provider, AccountID: x.AccountID}
	}
	return doc, nil
}

func fromPayoutRequestDoc(doc payoutRequestDoc) (*aggregate.PayoutRequest, error) {
	total, err := fromDecimal128(doc.TotalAmount)
	if err != nil {
		return nil, err
	}

	items := make([]aggregate.SourceItem, len(doc.SourceItems))
	for i, it := range doc.SourceItems {
		amount, err := fromDecimal128(it.Amount)
		if err != nil {
			return nil, err
		}
		items[i] = aggregate.SourceItem{ID: it.ID, Amount: amount, Origin: it.Origin, EarnedAt: it.EarnedAt}
	}

	var dest aggregate.PayoutDestination
	if b := doc.Bank; b != nil {
		dest.Bank = &aggregate.BankAccount{BankName: b.BankName, AccountNumber: b.AccountNumber, AccountName: b.AccountName, Branch: b.Branch}
	}
	if x := doc.Exchange; x != nil {
		dest.Exchange = &aggregate.ExchangeAccount{Provider: x.Provider, AccountID: x.AccountID}
	}

	return aggregate.ReconstructPayoutRequest(aggregate.PayoutRequestState{
		ID:          doc.ID,
		Variant:     workflow.Variant(doc.Variant),
		Requester:   aggregate.Requester{ID: doc.Requester.ID, Name: doc.Requester.Name, Email: doc.Requester.Email},
		SourceItems: items,
		TotalAmount: total,
		Currency:    doc.Currency,
		Destination: dest,
		CampaignID:  doc.CampaignID,
		Status:      workflow.Status(doc.Status),
		AdminNote:   doc.AdminNote,
		ProcessedBy: doc.ProcessedBy,
		ProcessedAt: doc.ProcessedAt,
		PaidBy:      doc.PaidBy,
		PaidAt:      doc.PaidAt,
		PaymentNote: doc.PaymentNote,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}), nil
}
