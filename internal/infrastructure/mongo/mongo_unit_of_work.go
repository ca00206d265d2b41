package mongo

import (
	"context"
	"fmt"
	"sync"

	"holidaysri-admin/internal/domain/repository"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoUnitOfWork implements the Unit of Work pattern for MongoDB
type MongoUnitOfWork struct {
	client        *mongo.Client
	database      *mongo.Database
	session       mongo.Session
	mutex         sync.Mutex
	inTransaction bool

	payoutRequestRepo *MongoPayoutRequestRepository
	earningRepo       *MongoEarningRepository
	campaignRepo      *MongoCampaignRepository
	advertisementRepo *MongoAdvertisementRepository
	paidFundRepo      *MongoPaidFundRepository
	adminRepo         *MongoAdminRepository
}

// NewMongoUnitOfWork creates a new MongoDB unit of work
func NewMongoUnitOfWork(client *mongo.Client, database *mongo.Database) *MongoUnitOfWork {
	return &MongoUnitOfWork{
		client:            client,
		database:          database,
		payoutRequestRepo: NewMongoPayoutRequestRepository(database),
		earningRepo:       NewMongoEarningRepository(database),
		campaignRepo:      NewMongoCampaignRepository(database),
		advertisementRepo: NewMongoAdvertisementRepository(database),
		paidFundRepo:      NewMongoPaidFundRepository(database),
		adminRepo:         NewMongoAdminRepository(database),
	}
}

// Begin starts a new transaction
func (uow *MongoUnitOfWork) Begin(ctx context.Context) error {
	uow.mutex.Lock()
	defer uow.mutex.Unlock()

	if uow.inTransaction {
		return fmt.Errorf("unit of work is already in transaction")
	}

	session, err := uow.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	uow.session = session
	uow.inTransaction = true
	uow.setTransaction(session)

	return nil
}

// Commit commits the current transaction
func (uow *MongoUnitOfWork) Commit(ctx context.Context) error {
	uow.mutex.Lock()
	defer uow.mutex.Unlock()

	if !uow.inTransaction {
		return fmt.Errorf("no active transaction to commit")
	}

	if err := uow.session.CommitTransaction(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	uow.endTransaction(ctx)
	return nil
}

// Rollback rolls back the current transaction
func (uow *MongoUnitOfWork) Rollback(ctx context.Context) error {
	uow.mutex.Lock()
	defer uow.mutex.Unlock()

	if !uow.inTransaction {
		return fmt.Errorf("no active transaction to rollback")
	}

	err := uow.session.AbortTransaction(ctx)
	uow.endTransaction(ctx)
	if err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (uow *MongoUnitOfWork) PayoutRequestRepository() repository.PayoutRequestRepository {
	return uow.payoutRequestRepo
}

func (uow *MongoUnitOfWork) EarningRepository() repository.EarningRepository {
	return uow.earningRepo
}

func (uow *MongoUnitOfWork) CampaignRepository() repository.CampaignRepository {
	return uow.campaignRepo
}

func (uow *MongoUnitOfWork) AdvertisementRepository() repository.AdvertisementRepository {
	return uow.advertisementRepo
}

func (uow *MongoUnitOfWork) PaidFundRepository() repository.PaidFundRepository {
	return uow.paidFundRepo
}

func (uow *MongoUnitOfWork) AdminRepository() repository.AdminRepository {
	return uow.adminRepo
}

// Close aborts any transaction left open
func (uow *MongoUnitOfWork) Close() error {
	uow.mutex.Lock()
	defer uow.mutex.Unlock()

	if uow.inTransaction && uow.session != nil {
		ctx := context.Background()
		_ = uow.session.AbortTransaction(ctx)
		uow.endTransaction(ctx)
	}

	return nil
}

// IsInTransaction returns whether the unit of work is in a transaction
func (uow *MongoUnitOfWork) IsInTransaction() bool {
	uow.mutex.Lock()
	defer uow.mutex.Unlock()
	return uow.inTransaction
}

func (uow *MongoUnitOfWork) endTransaction(ctx context.Context) {
	if uow.session != nil {
		uow.session.EndSession(ctx)
		uow.session = nil
	}
	uow.inTransaction = false
	uow.setTransaction(nil)
}

func (uow *MongoUnitOfWork) setTransaction(session mongo.Session) {
	repos := []repository.TransactionalRepository{
		uow.payoutRequestRepo,
		uow.earningRepo,
		uow.campaignRepo,
		uow.advertisementRepo,
		uow.paidFundRepo,
		uow.adminRepo,
	}
	for _, repo := range repos {
		repo.SetTransaction(session)
	}
}

// MongoUnitOfWorkFactory creates MongoDB unit of work instances
type MongoUnitOfWorkFactory struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoUnitOfWorkFactory creates a new MongoDB unit of work factory
func NewMongoUnitOfWorkFactory(client *mongo.Client, database *mongo.Database) *MongoUnitOfWorkFactory {
	return &MongoUnitOfWorkFactory{
		client:   client,
		database: database,
	}
}

// CreateUnitOfWork creates a new unit of work instance
func (f *MongoUnitOfWorkFactory) CreateUnitOfWork() repository.UnitOfWork {
	return NewMongoUnitOfWork(f.client, f.database)
}
