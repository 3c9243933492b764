package hostRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotwise/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDirectory implements Directory on MongoDB.
type MongoDirectory struct {
	scheduleColl  *mongo.Collection
	eventTypeColl *mongo.Collection
	calendarColl  *mongo.Collection
}

var _ Directory = (*MongoDirectory)(nil)

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{
		scheduleColl:  db.Collection("schedules"),
		eventTypeColl: db.Collection("event_types"),
		calendarColl:  db.Collection("host_calendars"),
	}
}

// EnsureIndexes creates one unique index per collection on its lookup key.
func (r *MongoDirectory) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := map[*mongo.Collection]mongo.IndexModel{
		r.scheduleColl: {
			Keys:    bson.D{{Key: "hostId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_host"),
		},
		r.eventTypeColl: {
			Keys:    bson.D{{Key: "hostId", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_host_event_type"),
		},
		r.calendarColl: {
			Keys:    bson.D{{Key: "hostId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_host"),
		},
	}
	for coll, model := range indexes {
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll.Name(), err)
		}
	}
	return nil
}

func (r *MongoDirectory) GetSchedule(ctx context.Context, hostID string) (*models.Schedule, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s models.Schedule
	if err := r.scheduleColl.FindOne(ctx, bson.M{"hostId": hostID}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("schedule for host %s: %w", hostID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("error fetching schedule for host %s: %w", hostID, err)
	}
	return &s, nil
}

func (r *MongoDirectory) GetEventType(ctx context.Context, hostID, eventTypeID string) (*models.EventType, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var et models.EventType
	if err := r.eventTypeColl.FindOne(ctx, bson.M{"hostId": hostID, "id": eventTypeID}).Decode(&et); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("event type %s of host %s: %w", eventTypeID, hostID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("error fetching event type %s: %w", eventTypeID, err)
	}
	return &et, nil
}

func (r *MongoDirectory) ListCalendars(ctx context.Context, hostID string) ([]models.CalendarRef, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc hostCalendars
	if err := r.calendarColl.FindOne(ctx, bson.M{"hostId": hostID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching calendars for host %s: %w", hostID, err)
	}
	return doc.Calendars, nil
}

func (r *MongoDirectory) UpsertSchedule(ctx context.Context, s *models.Schedule) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.scheduleColl.ReplaceOne(ctx, bson.M{"hostId": s.HostID}, s, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving schedule for host %s: %w", s.HostID, err)
	}
	return nil
}

func (r *MongoDirectory) UpsertEventType(ctx context.Context, et *models.EventType) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"hostId": et.HostID, "id": et.ID}
	if _, err := r.eventTypeColl.ReplaceOne(ctx, filter, et, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("error saving event type %s: %w", et.ID, err)
	}
	return nil
}

func (r *MongoDirectory) SetCalendars(ctx context.Context, hostID string, refs []models.CalendarRef) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	doc := hostCalendars{HostID: hostID, Calendars: refs}
	if _, err := r.calendarColl.ReplaceOne(ctx, bson.M{"hostId": hostID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("error saving calendars for host %s: %w", hostID, err)
	}
	return nil
}
