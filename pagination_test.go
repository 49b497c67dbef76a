package tablemap

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestStartKeyCursor(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		key := Item{
			"pk":      stringAV("u1"),
			"sk":      stringAV("u1~2020-06-01"),
			"gsi0_sk": &types.AttributeValueMemberN{Value: "42"},
		}

		cursor, err := MarshalStartKey(key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cursor == "" {
			t.Fatal("expected non-empty cursor")
		}

		decoded, err := UnmarshalStartKey(cursor)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got, _ := avString(decoded["pk"]); got != "u1" {
			t.Errorf("expected pk u1, got %v", decoded["pk"])
		}
		if got, _ := avString(decoded["sk"]); got != "u1~2020-06-01" {
			t.Errorf("expected sk u1~2020-06-01, got %v", decoded["sk"])
		}
		if num, ok := decoded["gsi0_sk"].(*types.AttributeValueMemberN); !ok || num.Value != "42" {
			t.Errorf("expected numeric gsi0_sk 42, got %v", decoded["gsi0_sk"])
		}
	})

	t.Run("empty key yields empty cursor", func(t *testing.T) {
		cursor, err := MarshalStartKey(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cursor != "" {
			t.Errorf("expected empty cursor, got %q", cursor)
		}
	})

	t.Run("empty cursor yields nil key", func(t *testing.T) {
		key, err := UnmarshalStartKey("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != nil {
			t.Errorf("expected nil key, got %v", key)
		}
	})

	t.Run("malformed cursor", func(t *testing.T) {
		if _, err := UnmarshalStartKey("not base64!"); err == nil {
			t.Error("expected error for malformed cursor")
		}
	})
}
