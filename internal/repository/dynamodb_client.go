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

	"symptomai/internal/storage"
)

const (
	pkPrefixNS  = "NS#"
	skPrefixKey = "KEY#"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client wraps a DynamoDB table as a namespaced key/value store.
type Client struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	noTTL     map[string]bool
	now       func() time.Time
}

type Option func(*Client)

// WithTTL stamps every written item with an expiry ttl in the future.
// Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithoutTTL keeps items of the given namespaces forever even when WithTTL is
// set.
func WithoutTTL(namespaces ...string) Option {
	return func(c *Client) {
		for _, ns := range namespaces {
			c.noTTL[ns] = true
		}
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{api: api, tableName: tableName, noTTL: make(map[string]bool), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Namespace returns an adapter whose keys share one partition.
func (c *Client) Namespace(ns string) storage.Adapter {
	ttl := c.ttl
	if c.noTTL[ns] {
		ttl = 0
	}
	return &Namespace{client: c, pk: nsPK(ns), ttl: ttl}
}

// Namespace is a storage.Adapter over a single DynamoDB partition.
type Namespace struct {
	client *Client
	pk     string
	ttl    time.Duration
}

func nsPK(ns string) string {
	return pkPrefixNS + ns
}

func keySK(key string) string {
	return skPrefixKey + key
}

func (c *Client) itemKey(pk, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: keySK(key)},
	}
}

// Get reads a single value with a consistent read.
func (n *Namespace) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, storage.ErrEmptyKey
	}
	out, err := n.client.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(n.client.tableName),
		Key:            n.client.itemKey(n.pk, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("repository: Get %q: %w", key, err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", false, nil
	}
	value, err := strAttr(out.Item, "value")
	if err != nil {
		return "", false, fmt.Errorf("repository: Get %q decode value: %w", key, err)
	}
	return value, true, nil
}

// Set writes or replaces the value.
func (n *Namespace) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return storage.ErrEmptyKey
	}
	_, err := n.client.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(n.client.tableName),
		Item:      n.client.valueItem(n.pk, key, value, n.ttl),
	})
	if err != nil {
		return fmt.Errorf("repository: Set %q: %w", key, err)
	}
	return nil
}

// Remove deletes the value; deleting a missing key is not an error.
func (n *Namespace) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return storage.ErrEmptyKey
	}
	_, err := n.client.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(n.client.tableName),
		Key:       n.client.itemKey(n.pk, key),
	})
	if err != nil {
		return fmt.Errorf("repository: Remove %q: %w", key, err)
	}
	return nil
}

func (c *Client) valueItem(pk, key, value string, ttl time.Duration) map[string]types.AttributeValue {
	now := c.now().UTC()
	item := c.itemKey(pk, key)
	item["value"] = &types.AttributeValueMemberS{Value: value}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}
	if ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(ttl).Unix())}
	}
	return item
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
