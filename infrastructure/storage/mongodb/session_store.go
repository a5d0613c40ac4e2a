package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

// sessionDocument is the MongoDB document representation of a session.
// The agent state is kept as its JSON encoding so it round-trips exactly.
type sessionDocument struct {
	ID        string    `bson:"_id"`
	Goal      string    `bson:"goal"`
	Status    string    `bson:"status"`
	Iteration int       `bson:"iteration"`
	State     string    `bson:"state"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// SessionStore is a MongoDB-backed implementation of session.Store.
type SessionStore struct {
	collection   *mongo.Collection
	queryTimeout time.Duration
}

// NewSessionStore creates a new MongoDB session store.
func NewSessionStore(client *mongo.Client, cfg Config) *SessionStore {
	if cfg.Collection == "" {
		cfg.Collection = "sessions"
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultConfig().QueryTimeout
	}

	var coll *mongo.Collection
	if client != nil {
		coll = client.Database(cfg.Database).Collection(cfg.Collection)
	}

	return &SessionStore{
		collection:   coll,
		queryTimeout: cfg.QueryTimeout,
	}
}

// EnsureIndexes creates the secondary indexes used by List.
func (s *SessionStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	return s.wrapError(err)
}

// Save persists a new session.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	doc, err := toDocument(sess)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return session.ErrSessionExists
		}
		return s.wrapError(err)
	}

	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, session.ErrInvalidSessionID
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var doc sessionDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, session.ErrSessionNotFound
		}
		return nil, s.wrapError(err)
	}

	return fromDocument(&doc)
}

// Update updates an existing session.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	doc, err := toDocument(sess)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": sess.ID}, doc)
	if err != nil {
		return s.wrapError(err)
	}

	if result.MatchedCount == 0 {
		return session.ErrSessionNotFound
	}

	return nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return session.ErrInvalidSessionID
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return s.wrapError(err)
	}

	if result.DeletedCount == 0 {
		return session.ErrSessionNotFound
	}

	return nil
}

// List returns sessions matching the filter.
func (s *SessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, buildFilter(filter), buildFindOptions(filter))
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	sessions := make([]*session.Session, 0)
	for cursor.Next(ctx) {
		var doc sessionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, s.wrapError(err)
		}
		sess, err := fromDocument(&doc)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := cursor.Err(); err != nil {
		return nil, s.wrapError(err)
	}

	return sessions, nil
}

// Count returns the number of sessions matching the filter.
func (s *SessionStore) Count(ctx context.Context, filter session.ListFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	count, err := s.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, s.wrapError(err)
	}

	return count, nil
}

// Summary returns aggregate statistics.
func (s *SessionStore) Summary(ctx context.Context, filter session.ListFilter) (session.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	countIf := func(status agent.Status) bson.D {
		return bson.D{{Key: "$sum", Value: bson.D{
			{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$status", string(status)}}}, 1, 0}},
		}}}
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: buildFilter(filter)}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "succeeded", Value: countIf(agent.StatusSuccess)},
			{Key: "running", Value: countIf(agent.StatusRunning)},
			{Key: "avg_iterations", Value: bson.D{{Key: "$avg", Value: "$iteration"}}},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return session.Summary{}, s.wrapError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var summary session.Summary
	if cursor.Next(ctx) {
		var result struct {
			Total         int64   `bson:"total"`
			Succeeded     int64   `bson:"succeeded"`
			Running       int64   `bson:"running"`
			AvgIterations float64 `bson:"avg_iterations"`
		}
		if err := cursor.Decode(&result); err != nil {
			return session.Summary{}, s.wrapError(err)
		}

		summary.TotalSessions = result.Total
		summary.SucceededSessions = result.Succeeded
		summary.RunningSessions = result.Running
		summary.AverageIterations = result.AvgIterations
	}

	return summary, cursor.Err()
}

// buildFilter constructs a MongoDB filter from the domain filter.
func buildFilter(filter session.ListFilter) bson.M {
	mongoFilter := bson.M{}

	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			statuses[i] = string(status)
		}
		mongoFilter["status"] = bson.M{"$in": statuses}
	}

	created := bson.M{}
	if !filter.FromTime.IsZero() {
		created["$gte"] = filter.FromTime
	}
	if !filter.ToTime.IsZero() {
		created["$lte"] = filter.ToTime
	}
	if len(created) > 0 {
		mongoFilter["created_at"] = created
	}

	if filter.GoalPattern != "" {
		mongoFilter["goal"] = bson.M{"$regex": primitive.Regex{
			Pattern: regexp.QuoteMeta(filter.GoalPattern),
			Options: "i",
		}}
	}

	return mongoFilter
}

// buildFindOptions constructs MongoDB find options from the domain filter.
func buildFindOptions(filter session.ListFilter) *options.FindOptions {
	opts := options.Find()

	sortField := "created_at"
	switch filter.OrderBy {
	case session.OrderByUpdatedAt:
		sortField = "updated_at"
	case session.OrderByID:
		sortField = "_id"
	case session.OrderByStatus:
		sortField = "status"
	}

	sortDir := 1
	if filter.Descending {
		sortDir = -1
	}
	opts.SetSort(bson.D{{Key: sortField, Value: sortDir}})

	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	return opts
}

// toDocument converts a Session to a MongoDB document.
func toDocument(sess *session.Session) (*sessionDocument, error) {
	state, err := json.Marshal(sess.State)
	if err != nil {
		return nil, err
	}

	return &sessionDocument{
		ID:        sess.ID,
		Goal:      sess.Goal,
		Status:    string(sess.Status()),
		Iteration: sess.State.Iteration,
		State:     string(state),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}, nil
}

// fromDocument converts a MongoDB document to a Session.
// BSON dates carry millisecond precision, so the timestamps embedded in
// the state are authoritative; the top-level ones are truncated.
func fromDocument(doc *sessionDocument) (*session.Session, error) {
	sess := &session.Session{
		ID:        doc.ID,
		Goal:      doc.Goal,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(doc.State), &sess.State); err != nil {
		return nil, err
	}
	return sess, nil
}

// wrapError wraps MongoDB errors with domain errors.
func (s *SessionStore) wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	return errors.Join(session.ErrConnectionFailed, err)
}

// Ensure SessionStore implements session.Store and session.SummaryProvider
var (
	_ session.Store           = (*SessionStore)(nil)
	_ session.SummaryProvider = (*SessionStore)(nil)
)
