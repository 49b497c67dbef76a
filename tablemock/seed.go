package tablemock

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SeedItems decodes a JSON array of objects into DynamoDB items, one
// per object. JSON numbers become number attribute values.
func SeedItems(r io.Reader) ([]map[string]types.AttributeValue, error) {
	var rows []map[string]any
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode seed data: %w", err)
	}

	items := make([]map[string]types.AttributeValue, 0, len(rows))
	for i, row := range rows {
		item, err := attributevalue.MarshalMap(row)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal seed row %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// SeedFile loads seed items from a JSON fixture file.
func SeedFile(path string) ([]map[string]types.AttributeValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return SeedItems(f)
}
