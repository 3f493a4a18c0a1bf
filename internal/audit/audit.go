// Package audit writes the append-only audit trail
package audit

import (
	"context"
	"fmt"
	"time"

	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Logger interface {
	Log(ctx context.Context, entry models.AuditLog) error
	List(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, error)
}

// StoreLogger writes to the relational audit_logs table
type StoreLogger struct {
	Store store.AuditStore
}

func (l *StoreLogger) Log(ctx context.Context, entry models.AuditLog) error {
	if l.Store == nil {
		return ErrorNotInitialized
	}
	if err := l.Store.CreateAuditLog(ctx, &entry); err != nil {
		return fmt.Errorf("audit log insert failed: %w", err)
	}
	return nil
}

func (l *StoreLogger) List(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, error) {
	if l.Store == nil {
		return nil, ErrorNotInitialized
	}
	return l.Store.ListAuditLogs(ctx, filter)
}

const mongoCollection = "entries"

// MongoLogger mirrors entries into the audit database of a MongoDB
// deployment
type MongoLogger struct {
	Db *mongo.Database
}

func NewMongoLogger(c *mongo.Client) (*MongoLogger, error) {
	if c == nil {
		return nil, fmt.Errorf("client is null")
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := c.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("server is unpingable: %w", err)
	}
	return &MongoLogger{Db: c.Database("audit")}, nil
}

func (l *MongoLogger) Log(ctx context.Context, entry models.AuditLog) error {
	insertCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := l.Db.Collection(mongoCollection).InsertOne(insertCtx, entry); err != nil {
		return fmt.Errorf("audit log insert failed: %w", err)
	}
	return nil
}

func (l *MongoLogger) List(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, error) {
	query := bson.M{}
	if filter.OrgId != nil {
		query["orgId"] = *filter.OrgId
	}
	if filter.Before != nil {
		query["createdAt"] = bson.M{"$lt": *filter.Before}
	}
	limit := int64(filter.Limit)
	if limit <= 0 {
		limit = 50
	}
	findCtx, cancelFind := context.WithTimeout(ctx, 3*time.Second)
	defer cancelFind()
	cursor, err := l.Db.Collection(mongoCollection).Find(
		findCtx,
		query,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("find failed: %w", err)
	}
	defer cursor.Close(findCtx)
	results := []models.AuditLog{}
	if err := cursor.All(findCtx, &results); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return results, nil
}

// Tee writes to Primary and mirrors to Mirror; mirror failures are logged
// and never fail the caller
type Tee struct {
	Primary     Logger
	Mirror      Logger
	ServiceLogs chan<- common.ServiceLog
}

func (t *Tee) Log(ctx context.Context, entry models.AuditLog) error {
	if err := t.Primary.Log(ctx, entry); err != nil {
		return err
	}
	if t.Mirror != nil {
		if err := t.Mirror.Log(ctx, entry); err != nil && t.ServiceLogs != nil {
			t.ServiceLogs <- common.ServiceLogf(common.LogLevelWarn, "failed to mirror audit entry[%s]: %s", entry.Action, err)
		}
	}
	return nil
}

func (t *Tee) List(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, error) {
	return t.Primary.List(ctx, filter)
}
