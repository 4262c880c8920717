package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"campus-assistant/internal/domain"
)

const defaultTTL = 30 * 24 * time.Hour

// dynamodbAPI is the minimal DynamoDB interface required by this package.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// MemoryStore keeps per-user conversation memory in one DynamoDB table keyed
// by user_id and memory_key. The "context" item holds the attribute
// snapshot; every other item is one turn of one session.
type MemoryStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl means 30 days.
func NewMemoryStore(api dynamodbAPI, tableName string, ttl time.Duration) (*MemoryStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

// Get returns the attribute snapshot, or nil when none is stored.
func (s *MemoryStore) Get(ctx context.Context, userID string) (domain.SessionAttributes, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       memoryKey(userID, contextKey),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: Get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	data, err := strAttr(out.Item, "data")
	if err != nil {
		return nil, fmt.Errorf("repository: Get: %w", err)
	}
	attrs, err := decodeAttrs(data)
	if err != nil {
		return nil, fmt.Errorf("repository: Get: %w", err)
	}
	return attrs, nil
}

// Put replaces the attribute snapshot and refreshes its expiry.
func (s *MemoryStore) Put(ctx context.Context, userID string, attrs domain.SessionAttributes) error {
	data, err := encodeAttrs(attrs)
	if err != nil {
		return fmt.Errorf("repository: Put: %w", err)
	}
	now := s.now()
	item := memoryKey(userID, contextKey)
	item["data"] = &types.AttributeValueMemberS{Value: data}
	item["updated_at"] = numAttr(now.Unix())
	item["expires_at"] = numAttr(now.Add(s.ttl).Unix())

	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("repository: Put: %w", err)
	}
	return nil
}

// AppendTurn writes one turn record. Turn ids are generated when missing.
func (s *MemoryStore) AppendTurn(ctx context.Context, userID, sessionID string, rec domain.TurnRecord) error {
	rec, ts := prepareTurn(rec, sessionID, s.now)
	data, err := encodeTurn(rec)
	if err != nil {
		return fmt.Errorf("repository: AppendTurn: %w", err)
	}
	item := memoryKey(userID, turnKey(sessionID, ts, rec.TurnID))
	item["data"] = &types.AttributeValueMemberS{Value: data}
	item["session_id"] = &types.AttributeValueMemberS{Value: sessionID}
	item["expires_at"] = numAttr(ts.Add(s.ttl).Unix())

	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id) AND attribute_not_exists(memory_key)"),
	}); err != nil {
		return fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return nil
}

// QueryRecentTurns returns up to limit turns of the session, most recent
// first. limit is clamped to [1, 100].
func (s *MemoryStore) QueryRecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]domain.TurnRecord, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("user_id = :uid AND begins_with(memory_key, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":    &types.AttributeValueMemberS{Value: userID},
			":prefix": &types.AttributeValueMemberS{Value: sessionPrefix(sessionID)},
		},
		// Newest first so LIMIT keeps the most recent turns.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(clampLimit(limit))),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: QueryRecentTurns: %w", err)
	}

	turns := make([]domain.TurnRecord, 0, len(out.Items))
	for _, item := range out.Items {
		data, err := strAttr(item, "data")
		if err != nil {
			return nil, fmt.Errorf("repository: QueryRecentTurns: %w", err)
		}
		rec, err := decodeTurn(data)
		if err != nil {
			return nil, fmt.Errorf("repository: QueryRecentTurns: %w", err)
		}
		turns = append(turns, rec)
	}
	return turns, nil
}

func memoryKey(userID, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id":    &types.AttributeValueMemberS{Value: userID},
		"memory_key": &types.AttributeValueMemberS{Value: key},
	}
}

// prepareTurn fills the turn id, session and timestamps.
func prepareTurn(rec domain.TurnRecord, sessionID string, now func() time.Time) (domain.TurnRecord, time.Time) {
	if rec.TurnID == "" {
		rec.TurnID = newUUID()
	}
	rec.SessionID = sessionID
	ts := rec.Timestamp
	switch {
	case !ts.IsZero():
	case rec.TimestampMS > 0:
		ts = time.UnixMilli(rec.TimestampMS)
	default:
		ts = now()
	}
	rec.Timestamp = ts.UTC()
	rec.TimestampMS = ts.UnixMilli()
	return rec, ts
}

var newUUID = func() string {
	return uuid.NewString()
}
