package tablemock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item marshals a fixture into DynamoDB attribute values. It panics on
// marshal failure; fixtures are static test data.
func Item(values map[string]any) map[string]types.AttributeValue {
	item, err := attributevalue.MarshalMap(values)
	if err != nil {
		panic(err)
	}
	return item
}

// PageOption is a functional option for configuring a query result page.
type PageOption func(*dynamodb.QueryOutput)

// WithItems appends items to the page.
func WithItems(items ...map[string]types.AttributeValue) PageOption {
	return func(out *dynamodb.QueryOutput) {
		out.Items = append(out.Items, items...)
	}
}

// WithLastKey marks the page as truncated at the given key.
func WithLastKey(key map[string]types.AttributeValue) PageOption {
	return func(out *dynamodb.QueryOutput) {
		out.LastEvaluatedKey = key
	}
}

// QueryPage builds a query result page from the given options.
func QueryPage(opts ...PageOption) *dynamodb.QueryOutput {
	out := &dynamodb.QueryOutput{}
	for _, opt := range opts {
		opt(out)
	}
	out.Count = int32(len(out.Items))
	return out
}

// QueryPages returns a QueryFunc that serves the given pages in order.
// A call after the last page fails the test.
func QueryPages(t *testing.T, pages ...*dynamodb.QueryOutput) DynamoDBAPICall[dynamodb.QueryInput, dynamodb.QueryOutput] {
	next := 0
	return func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
		if next >= len(pages) {
			t.Fatalf("unexpected query call %d, only %d pages staged", next+1, len(pages))
			return nil, nil
		}
		page := pages[next]
		next++
		return page, nil
	}
}

// GetOutput wraps an item as a GetItem result. A nil item produces the
// not-found shape (empty Item field).
func GetOutput(item map[string]types.AttributeValue) *dynamodb.GetItemOutput {
	return &dynamodb.GetItemOutput{Item: item}
}
