package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// DeadLetterStore keeps tasks the runner gave up on.
type DeadLetterStore interface {
	Put(ctx context.Context, dl DeadLetter) error
	Get(ctx context.Context, id string) (DeadLetter, error)
	List(ctx context.Context, limit int) ([]DeadLetter, error)
	Delete(ctx context.Context, id string) error
}

// MemoryDeadLetterStore is used in development and tests.
type MemoryDeadLetterStore struct {
	mu    sync.Mutex
	items map[string]DeadLetter
}

func NewMemoryDeadLetterStore() *MemoryDeadLetterStore {
	return &MemoryDeadLetterStore{items: make(map[string]DeadLetter)}
}

func (s *MemoryDeadLetterStore) Put(_ context.Context, dl DeadLetter) error {
	if dl.ID == "" {
		return errors.New("tasks: dead letter id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[dl.ID] = dl
	return nil
}

func (s *MemoryDeadLetterStore) Get(_ context.Context, id string) (DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dl, ok := s.items[id]
	if !ok {
		return DeadLetter{}, ErrDeadLetterNotFound
	}
	return dl, nil
}

// List returns the newest dead letters first.
func (s *MemoryDeadLetterStore) List(_ context.Context, limit int) ([]DeadLetter, error) {
	s.mu.Lock()
	out := make([]DeadLetter, 0, len(s.items))
	for _, dl := range s.items {
		out = append(out, dl)
	}
	s.mu.Unlock()
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryDeadLetterStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrDeadLetterNotFound
	}
	delete(s.items, id)
	return nil
}

func sortNewestFirst(list []DeadLetter) {
	sort.Slice(list, func(i, j int) bool { return list[i].FailedAt.After(list[j].FailedAt) })
}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDeadLetterStore persists dead letters in a DynamoDB table keyed by "id".
type DynamoDeadLetterStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewDynamoDeadLetterStore builds a store backed by the provided DynamoDB client.
func NewDynamoDeadLetterStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoDeadLetterStore {
	if client == nil {
		panic("tasks: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("tasks: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoDeadLetterStore{client: client, tableName: tableName, logger: logger}
}

func (s *DynamoDeadLetterStore) Put(ctx context.Context, dl DeadLetter) error {
	if dl.ID == "" {
		return errors.New("tasks: dead letter id required")
	}
	item, err := attributevalue.MarshalMap(dl)
	if err != nil {
		return fmt.Errorf("tasks: failed to marshal dead letter: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("tasks: failed to persist dead letter: %w", err)
	}
	s.logger.Debug("dead letter stored", "table", s.tableName, "task_id", dl.ID, "kind", dl.Kind)
	return nil
}

func (s *DynamoDeadLetterStore) Get(ctx context.Context, id string) (DeadLetter, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       idKey(id),
	})
	if err != nil {
		return DeadLetter{}, fmt.Errorf("tasks: failed to fetch dead letter: %w", err)
	}
	if out.Item == nil {
		return DeadLetter{}, ErrDeadLetterNotFound
	}
	var dl DeadLetter
	if err := attributevalue.UnmarshalMap(out.Item, &dl); err != nil {
		return DeadLetter{}, fmt.Errorf("tasks: failed to decode dead letter: %w", err)
	}
	return dl, nil
}

// List scans the whole table and returns the newest dead letters first.
func (s *DynamoDeadLetterStore) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.tableName)}
	var out []DeadLetter
	for {
		page, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("tasks: failed to scan dead letters: %w", err)
		}
		var batch []DeadLetter
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("tasks: failed to decode dead letters: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *DynamoDeadLetterStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrDeadLetterNotFound
		}
		return fmt.Errorf("tasks: failed to delete dead letter: %w", err)
	}
	return nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

// Requeue publishes a dead letter again with attempts reset and removes it
// from the store.
func Requeue(ctx context.Context, store DeadLetterStore, publisher *Publisher, id string) (Task, error) {
	dl, err := store.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	task := dl.Task()
	if err := publisher.Publish(ctx, task, 0); err != nil {
		return Task{}, err
	}
	if err := store.Delete(ctx, id); err != nil && !errors.Is(err, ErrDeadLetterNotFound) {
		return task, err
	}
	return task, nil
}
