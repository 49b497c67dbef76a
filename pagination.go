package tablemap

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func init() {
	// Register DynamoDB types with gob
	gob.Register(map[string]types.AttributeValue{})
	gob.Register(&types.AttributeValueMemberS{})
	gob.Register(&types.AttributeValueMemberN{})
	gob.Register(&types.AttributeValueMemberB{})
	gob.Register(&types.AttributeValueMemberSS{})
	gob.Register(&types.AttributeValueMemberNS{})
	gob.Register(&types.AttributeValueMemberBS{})
	gob.Register(&types.AttributeValueMemberM{})
	gob.Register(&types.AttributeValueMemberL{})
	gob.Register(&types.AttributeValueMemberNULL{})
	gob.Register(&types.AttributeValueMemberBOOL{})
}

// MarshalStartKey encodes a query's last evaluated key into an opaque
// string cursor for clients. Returns an empty cursor for a nil or
// empty key.
func MarshalStartKey(lastkey Item) (string, error) {
	if len(lastkey) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(lastkey); err != nil {
		return "", fmt.Errorf("failed to encode last key: %w", err)
	}

	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// UnmarshalStartKey decodes a client cursor back into an exclusive
// start key. Returns a nil key for an empty cursor.
func UnmarshalStartKey(cursor string) (Item, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}

	var key Item
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&key); err != nil {
		return nil, fmt.Errorf("failed to decode start key: %w", err)
	}

	return key, nil
}
