package tablemap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBClient is the narrow slice of the DynamoDB API the engine
// invokes. The engine issues bounded, synchronous calls and owns no
// connections; the client handles pooling and timeouts.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Engine executes entity operations against a single table. The engine
// is stateless between calls: every operation runs mutation, key
// synthesis, immutability checks, and request building locally, then
// issues at most one backend call (plus one read for a partial update
// that lacks its previous item).
type Engine struct {
	client   DynamoDBClient
	table    *Table
	registry *Registry
}

// New creates an Engine over the given client, table, and registry.
// The registry must be fully populated before the engine is shared.
func New(client DynamoDBClient, table *Table, registry *Registry) *Engine {
	return &Engine{client: client, table: table, registry: registry}
}

// Registry returns the engine's schema registry.
func (e *Engine) Registry() *Registry { return e.registry }

// NewRecord resolves the entity type and constructs a record from the
// given attributes.
func (e *Engine) NewRecord(entityType string, attrs map[string]any) (*Record, error) {
	schema, err := e.registry.Resolve(entityType)
	if err != nil {
		return nil, err
	}
	return schema.NewRecord(attrs)
}

// Create persists a new record, failing with ErrConditionFailed if an
// item with the same primary key already exists.
func (e *Engine) Create(ctx context.Context, rec *Record) error {
	input, err := e.table.MarshalCreate(rec)
	if err != nil {
		return err
	}
	if _, err := e.client.PutItem(ctx, input); err != nil {
		return e.wrapClientError("create", rec, err)
	}
	rec.markStored()
	return nil
}

// Replace persists the record unconditionally, overwriting any stored
// item with the same primary key. Immutable attributes of a hydrated
// record are still enforced, locally and with conditional guards.
func (e *Engine) Replace(ctx context.Context, rec *Record) error {
	input, err := e.table.MarshalReplace(rec)
	if err != nil {
		return err
	}
	if _, err := e.client.PutItem(ctx, input); err != nil {
		return e.wrapClientError("replace", rec, err)
	}
	rec.markStored()
	return nil
}

// Update issues a partial update carrying only the record's changed
// attributes and the index slots they feed. When the record was not
// hydrated from storage, the previous item is fetched first; the
// read-then-write is not atomic, so concurrent writers are fenced by
// the conditional guards and a failed condition surfaces as a
// retryable ErrConditionFailed.
func (e *Engine) Update(ctx context.Context, rec *Record) error {
	if rec.original == nil {
		previous, err := e.fetchPrevious(ctx, rec)
		if err != nil {
			return err
		}
		rec.original = previous
	}

	input, err := e.table.MarshalUpdate(rec)
	if err != nil {
		return err
	}
	if input == nil {
		return nil // nothing changed
	}
	if _, err := e.client.UpdateItem(ctx, input); err != nil {
		return e.wrapClientError("update", rec, err)
	}
	rec.markStored()
	return nil
}

// Delete removes the item identified by the table key synthesized from
// the given human attributes.
func (e *Engine) Delete(ctx context.Context, entityType string, attrs map[string]any) error {
	schema, err := e.registry.Resolve(entityType)
	if err != nil {
		return err
	}
	input, err := e.table.MarshalDelete(schema, attrs)
	if err != nil {
		return err
	}
	if _, err := e.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("delete %s: %w", entityType, err)
	}
	return nil
}

// Query runs an index-scoped range query and returns a lazy record
// sequence. The sequence is finite, pages transparently when the query
// is unbounded, and cannot be restarted once exhausted.
func (e *Engine) Query(entityType string, q Query) (*Records, error) {
	schema, err := e.registry.Resolve(entityType)
	if err != nil {
		return nil, err
	}
	input, err := e.table.MarshalQuery(schema, q)
	if err != nil {
		return nil, err
	}
	return &Records{
		client:  e.client,
		schema:  schema,
		input:   input,
		bounded: q.Limit > 0,
	}, nil
}

// fetchPrevious reads the stored item for the record's table key and
// returns its human attributes, or nil when the item does not exist.
func (e *Engine) fetchPrevious(ctx context.Context, rec *Record) (map[string]any, error) {
	key, err := e.table.marshalTableKey(rec.schema, rec.attrs)
	if err != nil {
		return nil, err
	}

	out, err := e.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(e.table.TableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("read before update %s: %w", rec.schema.entityType, err)
	}
	if out.Item == nil {
		return nil, ErrItemNotFound
	}

	raw, err := unmarshalItem(out.Item)
	if err != nil {
		return nil, err
	}
	previous, err := rec.schema.Hydrate(raw)
	if err != nil {
		return nil, err
	}
	return previous.attrs, nil
}

// wrapClientError maps a backend conditional-check failure to the
// retryable taxonomy with operation context; other errors pass through
// untouched.
func (e *Engine) wrapClientError(operation string, rec *Record, err error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return &ConditionFailedError{
			Operation:  operation,
			EntityType: rec.schema.entityType,
			Key:        recordKeyString(rec),
			Err:        err,
		}
	}
	return fmt.Errorf("%s %s: %w", operation, rec.schema.entityType, err)
}

func recordKeyString(rec *Record) string {
	pk, pkMissing := rec.schema.bindings[PartitionSlot(TableIndexName)].compose(rec.attrs)
	sk, skMissing := rec.schema.bindings[SortSlot(TableIndexName)].compose(rec.attrs)
	if pkMissing != "" || skMissing != "" {
		return ""
	}
	pkStr, _ := keyString(pk)
	skStr, _ := keyString(sk)
	return pkStr + "/" + skStr
}

// Records is a lazy, finite sequence of query results. A bounded query
// (Query.Limit > 0) yields at most one page and exposes a resumption
// cursor; an unbounded query pages transparently until exhaustion.
type Records struct {
	client DynamoDBClient
	schema *Schema
	input  *dynamodb.QueryInput

	bounded bool
	started bool
	done    bool

	items   []Item
	pos     int
	lastKey Item
	current *Record
	err     error
}

// Next advances to the next record, issuing backend calls as pages run
// out. It returns false when the sequence is exhausted or an error
// occurred; check Err afterwards.
func (it *Records) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}

	for {
		if it.pos < len(it.items) {
			item := it.items[it.pos]
			it.pos++
			rec, err := it.hydrate(item)
			if err != nil {
				it.err = err
				return false
			}
			it.current = rec
			return true
		}

		if it.done || (it.started && (it.bounded || it.lastKey == nil)) {
			it.done = true
			return false
		}

		if it.started {
			it.input.ExclusiveStartKey = it.lastKey
		}

		out, err := it.client.Query(ctx, it.input)
		if err != nil {
			it.err = fmt.Errorf("query %s: %w", it.schema.entityType, err)
			return false
		}

		it.started = true
		it.items = out.Items
		it.pos = 0
		it.lastKey = out.LastEvaluatedKey
	}
}

// Record returns the record produced by the last successful Next call.
func (it *Records) Record() *Record { return it.current }

// Err returns the first error the sequence encountered.
func (it *Records) Err() error { return it.err }

// Cursor returns the opaque resumption cursor after a bounded page has
// been exhausted, or an empty cursor when there are no further results.
func (it *Records) Cursor() (string, error) {
	return MarshalStartKey(it.lastKey)
}

func (it *Records) hydrate(item Item) (*Record, error) {
	raw, err := unmarshalItem(item)
	if err != nil {
		return nil, err
	}
	return it.schema.Hydrate(raw)
}
