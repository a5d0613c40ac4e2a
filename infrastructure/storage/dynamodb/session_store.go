package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/session"
)

// sessionItem represents a session in DynamoDB.
type sessionItem struct {
	ID        string `dynamodbav:"id"`
	Goal      string `dynamodbav:"goal"`
	Status    string `dynamodbav:"status"`
	Iteration int    `dynamodbav:"iteration"`
	State     string `dynamodbav:"state"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	ExpiresAt int64  `dynamodbav:"expires_at,omitempty"`
}

// expiresAtAttr is the table's TTL attribute, in Unix seconds.
const expiresAtAttr = "expires_at"

// SessionStore is a DynamoDB-backed implementation of session.Store.
// DynamoDB has no server-side ordering for scans, so List sorts and pages
// client-side after a status-filtered scan.
//
// DynamoDB deletes expired items lazily, so reads also hide items whose
// expires_at has passed.
type SessionStore struct {
	client       API
	tableName    string
	queryTimeout time.Duration
	retention    time.Duration
	now          func() time.Time
}

// NewSessionStore creates a new DynamoDB session store.
func NewSessionStore(client *Client) *SessionStore {
	s := NewSessionStoreFromAPI(client.DynamoDB(), client.config.SessionsTableName, client.config.QueryTimeout)
	s.retention = client.config.Retention
	return s
}

// NewSessionStoreFromAPI creates a session store over any DynamoDB API implementation.
func NewSessionStoreFromAPI(api API, tableName string, queryTimeout time.Duration) *SessionStore {
	if queryTimeout <= 0 {
		queryTimeout = DefaultConfig().QueryTimeout
	}
	return &SessionStore{
		client:       api,
		tableName:    tableName,
		queryTimeout: queryTimeout,
		now:          time.Now,
	}
}

func (s *SessionStore) expired(item *sessionItem) bool {
	return item.ExpiresAt != 0 && item.ExpiresAt <= s.now().Unix()
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// Save persists a new session.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	return s.put(ctx, sess, "attribute_not_exists(id)", session.ErrSessionExists)
}

// Update updates an existing session.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID == "" {
		return session.ErrInvalidSessionID
	}

	return s.put(ctx, sess, "attribute_exists(id)", session.ErrSessionNotFound)
}

// put writes the session under a condition, mapping a failed check to onConflict.
func (s *SessionStore) put(ctx context.Context, sess *session.Session, condition string, onConflict error) error {
	item, err := toItem(sess)
	if err != nil {
		return err
	}
	if s.retention > 0 && sess.Status() == agent.StatusSuccess {
		item.ExpiresAt = s.now().Add(s.retention).Unix()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String(condition),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return onConflict
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

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, s.wrapError(err)
	}

	if result.Item == nil {
		return nil, session.ErrSessionNotFound
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, err
	}
	if s.expired(&item) {
		return nil, session.ErrSessionNotFound
	}

	return fromItem(&item)
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return session.ErrInvalidSessionID
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return session.ErrSessionNotFound
		}
		return s.wrapError(err)
	}

	return nil
}

// List returns sessions matching the filter.
func (s *SessionStore) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	all, err := s.scan(ctx, filter)
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

// Count returns the number of sessions matching the filter.
func (s *SessionStore) Count(ctx context.Context, filter session.ListFilter) (int64, error) {
	filter.Limit, filter.Offset = 0, 0
	matched, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Summary returns aggregate statistics.
func (s *SessionStore) Summary(ctx context.Context, filter session.ListFilter) (session.Summary, error) {
	filter.Limit, filter.Offset = 0, 0
	matched, err := s.List(ctx, filter)
	if err != nil {
		return session.Summary{}, err
	}
	return session.Summarize(matched), nil
}

// scan reads every item, pushing the status filter to the server.
func (s *SessionStore) scan(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, err := s.buildScanInput(filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var sessions []*session.Session
	paginator := dynamodb.NewScanPaginator(s.client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.wrapError(err)
		}

		for _, raw := range page.Items {
			var item sessionItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, err
			}
			if s.expired(&item) {
				continue
			}
			sess, err := fromItem(&item)
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, sess)
		}
	}

	return sessions, nil
}

// buildScanInput constructs the scan request for a filter.
func (s *SessionStore) buildScanInput(filter session.ListFilter) (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(s.tableName),
		ConsistentRead: aws.Bool(true),
	}

	if len(filter.Status) == 0 {
		return input, nil
	}

	var cond expression.ConditionBuilder
	for i, st := range filter.Status {
		c := expression.Name("status").Equal(expression.Value(string(st)))
		if i == 0 {
			cond = c
		} else {
			cond = cond.Or(c)
		}
	}

	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	if err != nil {
		return nil, err
	}

	input.FilterExpression = expr.Filter()
	input.ExpressionAttributeNames = expr.Names()
	input.ExpressionAttributeValues = expr.Values()

	return input, nil
}

// toItem converts a Session to a DynamoDB item.
func toItem(sess *session.Session) (*sessionItem, error) {
	state, err := json.Marshal(sess.State)
	if err != nil {
		return nil, err
	}

	return &sessionItem{
		ID:        sess.ID,
		Goal:      sess.Goal,
		Status:    string(sess.Status()),
		Iteration: sess.State.Iteration,
		State:     string(state),
		CreatedAt: sess.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: sess.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

// fromItem converts a DynamoDB item to a Session.
func fromItem(item *sessionItem) (*session.Session, error) {
	sess := &session.Session{
		ID:   item.ID,
		Goal: item.Goal,
	}

	var err error
	if item.CreatedAt != "" {
		if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, item.CreatedAt); err != nil {
			return nil, err
		}
	}
	if item.UpdatedAt != "" {
		if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, item.UpdatedAt); err != nil {
			return nil, err
		}
	}

	if err := json.Unmarshal([]byte(item.State), &sess.State); err != nil {
		return nil, err
	}

	return sess, nil
}

// wrapError wraps DynamoDB errors with domain errors.
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
	_ API                     = (*dynamodb.Client)(nil)
)
