// internal/output/mongodb.go
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// MongoOptions configures the document mirror
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoMirror stores each finalized lesson as one document keyed by the
// lesson key. The document keeps the JSON field names of the output file.
type MongoMirror struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	logger     utils.Logger
}

var _ Mirror = (*MongoMirror)(nil)

// NewMongoMirror connects and pings the server
func NewMongoMirror(ctx context.Context, opts MongoOptions, logger utils.Logger) (*MongoMirror, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("MongoDB URI is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(4).
		SetRetryWrites(true).
		SetServerSelectionTimeout(opts.Timeout)

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(opts.Database).Collection(opts.Collection)
	_, err = coll.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "lesson.platform", Value: 1}, {Key: "lesson.level", Value: 1}},
	})
	if err != nil {
		logger.Warnf("failed to create MongoDB index: %v", err)
	}

	logger.Infof("connected to MongoDB database %s, collection %s", opts.Database, opts.Collection)
	return &MongoMirror{
		client:     client,
		collection: coll,
		timeout:    opts.Timeout,
		logger:     logger.WithField("component", "mongo"),
	}, nil
}

// lessonDocument converts an extraction into a BSON document via its JSON
// form, so field names match the output files
func lessonDocument(le *types.LessonExtraction, file string) (bson.D, error) {
	data, err := json.Marshal(le)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lesson: %w", err)
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert lesson to BSON: %w", err)
	}
	doc = append(bson.D{{Key: "_id", Value: le.Lesson.Key}}, doc...)
	doc = append(doc, bson.E{Key: "file", Value: file})
	return doc, nil
}

// Publish upserts the lesson document
func (m *MongoMirror) Publish(ctx context.Context, le *types.LessonExtraction, file string) error {
	doc, err := lessonDocument(le, file)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err = m.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: le.Lesson.Key}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lesson %s: %w", le.Lesson.Key, err)
	}
	m.logger.Debugf("mirrored %s to MongoDB", le.Lesson.Key)
	return nil
}

// Close disconnects the client
func (m *MongoMirror) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}
