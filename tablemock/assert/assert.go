// Package assert provides fluent assertion utilities for testing
// tablemap records and the DynamoDB items they marshal into.
//
// # Usage
//
//	assert.Items(t, result.Items).
//		HasCount(2).
//		ContainsKey("u1", "u1~2020-01-01")
//
//	assert.DynamoDBItem(t, input.Item).
//		HasString("pk", "u1").
//		HasString("sk", "u1~2020-01-01").
//		HasNoAttribute("gsi1_pk")
package assert

import (
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/tablemap"
)

// ItemsAssertion provides fluent assertions for DynamoDB items.
type ItemsAssertion struct {
	t     *testing.T
	items []map[string]types.AttributeValue
}

// Items creates a new ItemsAssertion for the given DynamoDB items.
func Items(t *testing.T, items []map[string]types.AttributeValue) *ItemsAssertion {
	return &ItemsAssertion{t: t, items: items}
}

// HasCount asserts that the items collection has the expected count.
func (a *ItemsAssertion) HasCount(expected int) *ItemsAssertion {
	if len(a.items) != expected {
		a.t.Errorf("expected %d items, got %d", expected, len(a.items))
	}
	return a
}

// IsEmpty asserts that the items collection is empty.
func (a *ItemsAssertion) IsEmpty() *ItemsAssertion {
	return a.HasCount(0)
}

// IsNotEmpty asserts that the items collection is not empty.
func (a *ItemsAssertion) IsNotEmpty() *ItemsAssertion {
	if len(a.items) == 0 {
		a.t.Error("expected items to not be empty")
	}
	return a
}

// ContainsKey asserts that the items contain an item with the given
// table partition and sort key values.
func (a *ItemsAssertion) ContainsKey(pk, sk string) *ItemsAssertion {
	for _, item := range a.items {
		if stringAttr(item, tablemap.AttributeNamePartition) == pk &&
			stringAttr(item, tablemap.AttributeNameSort) == sk {
			return a
		}
	}
	a.t.Errorf("expected to find item with pk=%s sk=%s", pk, sk)
	return a
}

// HasAttribute asserts that at least one item has the named string
// attribute with the expected value.
func (a *ItemsAssertion) HasAttribute(name, expected string) *ItemsAssertion {
	for _, item := range a.items {
		if stringAttr(item, name) == expected {
			return a
		}
	}
	a.t.Errorf("expected to find attribute %s with value %s in items", name, expected)
	return a
}

// DynamoDBItemAssertion provides fluent assertions for individual DynamoDB items.
type DynamoDBItemAssertion struct {
	t    *testing.T
	item map[string]types.AttributeValue
}

// DynamoDBItem creates a new DynamoDBItemAssertion for the given item.
func DynamoDBItem(t *testing.T, item map[string]types.AttributeValue) *DynamoDBItemAssertion {
	return &DynamoDBItemAssertion{t: t, item: item}
}

// HasString asserts that the item has the named string attribute with
// the expected value.
func (a *DynamoDBItemAssertion) HasString(name, expected string) *DynamoDBItemAssertion {
	attr, exists := a.item[name]
	if !exists {
		a.t.Errorf("item missing attribute %s", name)
		return a
	}
	str, ok := attr.(*types.AttributeValueMemberS)
	if !ok {
		a.t.Errorf("attribute %s is not a string", name)
		return a
	}
	if str.Value != expected {
		a.t.Errorf("attribute %s expected %s, got %s", name, expected, str.Value)
	}
	return a
}

// HasNumber asserts that the item has the named number attribute with
// the expected wire value.
func (a *DynamoDBItemAssertion) HasNumber(name, expected string) *DynamoDBItemAssertion {
	attr, exists := a.item[name]
	if !exists {
		a.t.Errorf("item missing attribute %s", name)
		return a
	}
	num, ok := attr.(*types.AttributeValueMemberN)
	if !ok {
		a.t.Errorf("attribute %s is not a number", name)
		return a
	}
	if num.Value != expected {
		a.t.Errorf("attribute %s expected %s, got %s", name, expected, num.Value)
	}
	return a
}

// HasNoAttribute asserts that the item does not carry the named attribute.
func (a *DynamoDBItemAssertion) HasNoAttribute(name string) *DynamoDBItemAssertion {
	if _, exists := a.item[name]; exists {
		a.t.Errorf("expected item to not have attribute %s", name)
	}
	return a
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	attr, exists := item[name]
	if !exists {
		return ""
	}
	if str, ok := attr.(*types.AttributeValueMemberS); ok {
		return str.Value
	}
	return ""
}

// RecordAssertion provides fluent assertions for tablemap records.
type RecordAssertion struct {
	t      *testing.T
	record *tablemap.Record
}

// Record creates a new RecordAssertion for the given record.
func Record(t *testing.T, record *tablemap.Record) *RecordAssertion {
	return &RecordAssertion{t: t, record: record}
}

// HasAttribute asserts that the record holds the attribute with the
// expected value.
func (a *RecordAssertion) HasAttribute(name string, expected any) *RecordAssertion {
	got, ok := a.record.Get(name)
	if !ok {
		a.t.Errorf("record missing attribute %s", name)
		return a
	}
	if !reflect.DeepEqual(got, expected) {
		a.t.Errorf("attribute %s expected %v, got %v", name, expected, got)
	}
	return a
}

// HasIndexValue asserts that synthesizing the record's attributes
// produces the expected value for the named physical attribute.
func (a *RecordAssertion) HasIndexValue(name string, expected any) *RecordAssertion {
	keys, err := a.record.Schema().Synthesize(a.record.Attributes())
	if err != nil {
		a.t.Errorf("failed to synthesize index values: %v", err)
		return a
	}
	got, ok := keys[name]
	if !ok {
		a.t.Errorf("no index value for %s", name)
		return a
	}
	if !reflect.DeepEqual(got, expected) {
		a.t.Errorf("index value %s expected %v, got %v", name, expected, got)
	}
	return a
}
