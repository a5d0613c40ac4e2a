package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/felixgeelhaar/agentsim/domain/agent"
	"github.com/felixgeelhaar/agentsim/domain/session"
	"github.com/felixgeelhaar/agentsim/infrastructure/storage/storetest"
)

// fakeAPI is an in-memory table keyed by "id". It understands the two
// condition expressions the store issues and returns scans in key order,
// two items per page so pagination is exercised.
type fakeAPI struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	scans int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	if s, ok := item["id"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeAPI) check(id, condition string) error {
	_, exists := f.items[id]
	switch condition {
	case "attribute_not_exists(id)":
		if exists {
			return &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	case "attribute_exists(id)":
		if !exists {
			return &types.ConditionalCheckFailedException{Message: aws.String("missing")}
		}
	}
	return nil
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := keyOf(in.Item)
	if err := f.check(id, aws.ToString(in.ConditionExpression)); err != nil {
		return nil, err
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := keyOf(in.Key)
	if err := f.check(id, aws.ToString(in.ConditionExpression)); err != nil {
		return nil, err
	}
	delete(f.items, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Scan ignores FilterExpression; the store re-applies every filter client-side.
func (f *fakeAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := keyOf(in.ExclusiveStartKey)
		start = sort.SearchStrings(keys, after) + 1
	}
	end := min(start+2, len(keys))

	out := &dynamodb.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, f.items[k])
	}
	out.Count = int32(len(out.Items))
	if end < len(keys) {
		out.LastEvaluatedKey = idKey(keys[end-1])
	}
	return out, nil
}

func TestSessionStore(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(testing.TB) session.Store {
		return NewSessionStoreFromAPI(newFakeAPI(), "sessions", time.Second)
	})
}

func TestSessionStore_SummaryPaginates(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	store := NewSessionStoreFromAPI(api, "sessions", time.Second)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	statuses := []agent.Status{agent.StatusRunning, agent.StatusSuccess, agent.StatusSuccess, agent.StatusRunning, agent.StatusSuccess}
	for i, st := range statuses {
		id := string(rune('a' + i))
		if err := store.Save(ctx, storetest.NewSession(id, "g", st, now)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	sum, err := store.Summary(ctx, session.ListFilter{})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.TotalSessions != 5 || sum.SucceededSessions != 3 || sum.RunningSessions != 2 {
		t.Errorf("Summary() = %+v", sum)
	}
	if api.scans != 3 {
		t.Errorf("scan pages = %d, want 3", api.scans)
	}
}

func TestBuildScanInput(t *testing.T) {
	t.Parallel()

	store := NewSessionStoreFromAPI(nil, "sessions", 0)

	plain, err := store.buildScanInput(session.ListFilter{})
	if err != nil {
		t.Fatalf("buildScanInput() error = %v", err)
	}
	if plain.FilterExpression != nil {
		t.Errorf("unfiltered scan has expression %q", aws.ToString(plain.FilterExpression))
	}

	filtered, err := store.buildScanInput(session.ListFilter{
		Status: []agent.Status{agent.StatusRunning, agent.StatusSuccess},
	})
	if err != nil {
		t.Fatalf("buildScanInput() error = %v", err)
	}
	if filtered.FilterExpression == nil || len(filtered.ExpressionAttributeValues) != 2 {
		t.Errorf("filtered scan = %+v", filtered)
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	store := NewSessionStoreFromAPI(nil, "sessions", 0)
	if err := store.wrapError(errors.New("boom")); !errors.Is(err, session.ErrConnectionFailed) {
		t.Errorf("wrapError() = %v, want ErrConnectionFailed", err)
	}
	if err := store.wrapError(context.DeadlineExceeded); errors.Is(err, session.ErrConnectionFailed) {
		t.Errorf("wrapError(deadline) = %v, should pass through", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for _, opt := range []ConfigOption{
		WithRegion("eu-west-1"),
		WithEndpoint("http://localhost:8000"),
		WithStaticCredentials("id", "secret"),
		WithQueryTimeout(time.Second),
		WithSessionsTableName("sims"),
		WithRetention(time.Hour),
	} {
		opt(&cfg)
	}

	if cfg.Region != "eu-west-1" || cfg.Endpoint != "http://localhost:8000" ||
		cfg.AccessKeyID != "id" || cfg.QueryTimeout != time.Second || cfg.SessionsTableName != "sims" ||
		cfg.Retention != time.Hour {
		t.Errorf("options not applied: %+v", cfg)
	}
}

func TestSessionStore_Retention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	api := newFakeAPI()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewSessionStoreFromAPI(api, "sessions", time.Second)
	store.retention = time.Hour
	store.now = func() time.Time { return clock }

	done := storetest.NewSession("done", "g", agent.StatusSuccess, clock)
	live := storetest.NewSession("live", "g", agent.StatusRunning, clock)
	for _, sess := range []*session.Session{done, live} {
		if err := store.Save(ctx, sess); err != nil {
			t.Fatalf("Save(%s): %v", sess.ID, err)
		}
	}

	if _, ok := api.items["live"][expiresAtAttr]; ok {
		t.Error("running session carries expires_at")
	}
	n, ok := api.items["done"][expiresAtAttr].(*types.AttributeValueMemberN)
	if !ok {
		t.Fatal("succeeded session has no expires_at")
	}
	if want := fmt.Sprint(clock.Add(time.Hour).Unix()); n.Value != want {
		t.Errorf("expires_at = %s, want %s", n.Value, want)
	}

	clock = clock.Add(2 * time.Hour)
	if _, err := store.Get(ctx, "done"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get(expired) error = %v, want ErrSessionNotFound", err)
	}
	list, err := store.List(ctx, session.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != "live" {
		t.Errorf("List returned %d sessions, want only live", len(list))
	}
}
