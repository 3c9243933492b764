package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotwise/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const opTimeout = 5 * time.Second

var _ Store = (*MongoStore)(nil)

// MongoStore implements Store on MongoDB. Writes touching more than one
// document run in a multi-document transaction, which requires a replica set.
type MongoStore struct {
	bookingColl *mongo.Collection
	idemColl    *mongo.Collection
}

// NewMongoStore constructs a Store over the "bookings" and
// "idempotency_keys" collections of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		bookingColl: db.Collection("bookings"),
		idemColl:    db.Collection("idempotency_keys"),
	}
}

func (repo *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := repo.bookingColl.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
}

func (repo *MongoStore) insert(ctx context.Context, b *models.Booking, idem *models.IdempotencyRecord) error {
	if idem != nil {
		// an expired record may linger until the TTL monitor runs
		if _, err := repo.idemColl.DeleteOne(ctx, bson.M{
			"hostId":    idem.HostID,
			"key":       idem.Key,
			"expiresAt": bson.M{"$lte": idem.CreatedAt},
		}); err != nil {
			return fmt.Errorf("clear expired idempotency record: %w", err)
		}
		if _, err := repo.idemColl.InsertOne(ctx, idem); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("idempotency key %q: %w", idem.Key, models.ErrDuplicateReservation)
			}
			return fmt.Errorf("insert idempotency record failed: %w", err)
		}
	}
	if _, err := repo.bookingColl.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("insert booking failed: %w", err)
	}
	return nil
}

func (repo *MongoStore) Create(ctx context.Context, b *models.Booking, idem *models.IdempotencyRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if idem == nil {
		return repo.insert(ctx, b, nil)
	}
	if err := repo.withTransaction(ctx, func(sc mongo.SessionContext) error {
		return repo.insert(sc, b, idem)
	}); err != nil {
		return fmt.Errorf("booking transaction failed: %w", err)
	}
	return nil
}

func (repo *MongoStore) Get(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var b models.Booking
	if err := repo.bookingColl.FindOne(ctx, bson.M{"id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("error fetching booking with id %s: %w", id, err)
	}
	return &b, nil
}

// replaceIfState swaps the stored document for b when its state still equals from.
func (repo *MongoStore) replaceIfState(ctx context.Context, b *models.Booking, from models.BookingState) error {
	res, err := repo.bookingColl.ReplaceOne(ctx, bson.M{"id": b.ID, "state": from}, b)
	if err != nil {
		return fmt.Errorf("error updating booking %s: %w", b.ID, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	var current models.Booking
	if err := repo.bookingColl.FindOne(ctx, bson.M{"id": b.ID}).Decode(&current); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("booking %s: %w", b.ID, models.ErrNotFound)
		}
		return fmt.Errorf("error fetching booking with id %s: %w", b.ID, err)
	}
	return fmt.Errorf("booking %s is %s, expected %s: %w", b.ID, current.State, from, models.ErrInvalidTransition)
}

func (repo *MongoStore) Transition(ctx context.Context, b *models.Booking, from models.BookingState) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return repo.replaceIfState(ctx, b, from)
}

func (repo *MongoStore) Reschedule(ctx context.Context, original, replacement *models.Booking, idem *models.IdempotencyRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := repo.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := repo.replaceIfState(sc, original, models.BookingConfirmed); err != nil {
			return err
		}
		return repo.insert(sc, replacement, idem)
	}); err != nil {
		return fmt.Errorf("reschedule transaction failed: %w", err)
	}
	return nil
}

func (repo *MongoStore) ListActiveForHost(ctx context.Context, hostID string, window models.Interval) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"hostId":         hostID,
		"state":          bson.M{"$in": activeStates},
		"interval.start": bson.M{"$lt": window.End},
		"interval.end":   bson.M{"$gt": window.Start},
	}
	cursor, err := repo.bookingColl.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error finding active bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	return out, nil
}

func (repo *MongoStore) CountForHostOnDay(ctx context.Context, hostID string, day models.Interval, excludeID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"hostId":         hostID,
		"state":          bson.M{"$in": activeStates},
		"interval.start": bson.M{"$gte": day.Start, "$lt": day.End},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}
	n, err := repo.bookingColl.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("error counting bookings: %w", err)
	}
	return int(n), nil
}

func (repo *MongoStore) FindIdempotency(ctx context.Context, hostID, key string, now time.Time) (*models.IdempotencyRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rec models.IdempotencyRecord
	filter := bson.M{"hostId": hostID, "key": key, "expiresAt": bson.M{"$gt": now}}
	if err := repo.idemColl.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("idempotency key %q: %w", key, models.ErrNotFound)
		}
		return nil, fmt.Errorf("error fetching idempotency record: %w", err)
	}
	return &rec, nil
}
