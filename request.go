package tablemap

import (
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// Table holds the physical table configuration and synthesizes wire
// requests from records and schemas. Every local validation error is
// raised here, before a request exists to send.
type Table struct {
	TableName string
}

// NewTable creates a Table for the named DynamoDB table.
func NewTable(tableName string) *Table {
	return &Table{TableName: tableName}
}

// MarshalCreate marshals the record into a conditional put that fails
// if an item with the same primary key already exists.
func (t *Table) MarshalCreate(rec *Record) (*dynamodb.PutItemInput, error) {
	if err := rec.synthesize(); err != nil {
		return nil, err
	}

	item, err := marshalItem(rec.item())
	if err != nil {
		return nil, err
	}

	cond := expression.AttributeNotExists(expression.Name(AttributeNamePartition)).
		And(expression.AttributeNotExists(expression.Name(AttributeNameSort)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}

	return &dynamodb.PutItemInput{
		TableName:                aws.String(t.TableName),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	}, nil
}

// MarshalReplace marshals the record into an unconditional full put.
// When the record carries a hydrated original, immutable attributes are
// checked locally and guarded with equality conditions against
// concurrent writers.
func (t *Table) MarshalReplace(rec *Record) (*dynamodb.PutItemInput, error) {
	if err := checkImmutable(rec.schema, rec.original, rec.attrs); err != nil {
		return nil, err
	}
	if err := rec.synthesize(); err != nil {
		return nil, err
	}

	item, err := marshalItem(rec.item())
	if err != nil {
		return nil, err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(t.TableName),
		Item:      item,
	}

	guards := immutableGuards(rec.schema, rec.original)
	if len(guards) == 0 {
		return input, nil
	}

	cond, err := guardCondition(guards)
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}
	input.ConditionExpression = expr.Condition()
	input.ExpressionAttributeNames = expr.Names()
	input.ExpressionAttributeValues = expr.Values()
	return input, nil
}

// MarshalUpdate marshals the record's diff against its hydrated
// original into a partial update: changed human attributes plus every
// physical slot whose composition depends on one of them. Unaffected
// slots are left untouched. Immutable attributes in the delta are
// rejected before a request is built.
func (t *Table) MarshalUpdate(rec *Record) (*dynamodb.UpdateItemInput, error) {
	if rec.original == nil {
		return nil, fmt.Errorf("tablemap: partial update requires the previously stored item")
	}
	if err := checkImmutable(rec.schema, rec.original, rec.attrs); err != nil {
		return nil, err
	}

	changed := rec.Changed()
	if len(changed) == 0 {
		return nil, nil
	}

	affected, err := rec.schema.SynthesizeAffected(rec.attrs, changed)
	if err != nil {
		return nil, err
	}

	key, err := t.marshalTableKey(rec.schema, rec.attrs)
	if err != nil {
		return nil, err
	}

	var update expression.UpdateBuilder
	for _, name := range changed {
		if value, ok := rec.attrs[name]; ok {
			update = update.Set(expression.Name(name), expression.Value(value))
		} else {
			update = update.Remove(expression.Name(name))
		}
	}
	for name, value := range affected {
		if name == AttributeNamePartition || name == AttributeNameSort {
			return nil, fmt.Errorf("tablemap: cannot update table key attributes, use replace")
		}
		update = update.Set(expression.Name(name), expression.Value(value))
	}

	cond := expression.AttributeExists(expression.Name(AttributeNamePartition))
	guards := immutableGuards(rec.schema, rec.original)
	if len(guards) > 0 {
		guard, err := guardCondition(guards)
		if err != nil {
			return nil, err
		}
		cond = cond.And(guard)
	}

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update expression: %w", err)
	}

	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.TableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// MarshalDelete marshals a delete keyed only by the table partition and
// sort values synthesized from the supplied human attributes.
func (t *Table) MarshalDelete(schema *Schema, attrs map[string]any) (*dynamodb.DeleteItemInput, error) {
	key, err := t.marshalTableKey(schema, attrs)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DeleteItemInput{
		TableName: aws.String(t.TableName),
		Key:       key,
	}, nil
}

// MarshalQuery marshals an index-scoped query. The partition value and
// any sort condition values are composed from human attributes with the
// write-path rules, which is what makes range and prefix queries
// meaningful.
func (t *Table) MarshalQuery(schema *Schema, q Query) (*dynamodb.QueryInput, error) {
	index := q.Index
	if index == "" {
		selected, ok := schema.selectIndex(q.Partition)
		if !ok {
			return nil, ErrIndexNotFound
		}
		index = selected
	}

	pk, sk, ok := schema.indexKeys(index)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not bind index %q", ErrIndexNotFound, schema.entityType, index)
	}

	pkValue, missing := pk.Composition.compose(q.Partition)
	if missing != "" {
		return nil, &CompositionError{Slot: pk.Slot, Attribute: missing}
	}

	keyCond := expression.Key(pk.Slot.AttributeName()).Equal(expression.Value(pkValue))
	if q.Sort != nil {
		sortCond, err := q.Sort.keyCondition(sk.Composition, sk.Slot.AttributeName())
		if err != nil {
			return nil, err
		}
		keyCond = keyCond.And(sortCond)
	}

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!q.SortDescending),
	}
	if index != TableIndexName {
		input.IndexName = aws.String(index)
	}
	if q.Limit > 0 {
		limit := q.Limit
		if limit > math.MaxInt32 {
			limit = math.MaxInt32
		}
		input.Limit = aws.Int32(int32(limit))
	}
	if q.StartCursor != "" {
		startKey, err := UnmarshalStartKey(q.StartCursor)
		if err != nil {
			return nil, err
		}
		input.ExclusiveStartKey = startKey
	}

	return input, nil
}

// marshalTableKey composes and marshals the table's primary key pair.
func (t *Table) marshalTableKey(schema *Schema, attrs map[string]any) (Item, error) {
	key := make(Item, 2)
	for _, slot := range []IndexSlot{PartitionSlot(TableIndexName), SortSlot(TableIndexName)} {
		value, missing := schema.bindings[slot].compose(attrs)
		if missing != "" {
			return nil, &CompositionError{Slot: slot, Attribute: missing}
		}
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key %s: %w", slot, err)
		}
		key[slot.AttributeName()] = av
	}
	return key, nil
}

// guardCondition builds the equality conditions locking immutable
// attributes to their persisted values.
func guardCondition(guards map[string]any) (expression.ConditionBuilder, error) {
	var cond expression.ConditionBuilder
	first := true
	for name, value := range guards {
		eq := expression.Name(name).Equal(expression.Value(value))
		if first {
			cond = eq
			first = false
		} else {
			cond = cond.And(eq)
		}
	}
	return cond, nil
}

// marshalItem converts the merged item map into attribute values.
func marshalItem(item map[string]any) (Item, error) {
	out, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return out, nil
}

// unmarshalItem converts a stored item back into a plain map for
// hydration. Numeric attribute values become float64.
func unmarshalItem(item Item) (map[string]any, error) {
	out := make(map[string]any, len(item))
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return out, nil
}
