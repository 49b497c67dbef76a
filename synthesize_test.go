package tablemap

import (
	"errors"
	"testing"
)

func TestSynthesize(t *testing.T) {
	schema := eventSchema(t)

	t.Run("computes every bound slot", func(t *testing.T) {
		keys, err := schema.Synthesize(map[string]any{
			"userId": "u1", "date": "2020-01-01", "action": "login",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := map[string]any{
			"pk":      "u1",
			"sk":      "u1~2020-01-01",
			"gsi0_pk": "login",
			"gsi0_sk": "2020-01-01",
		}
		for name, value := range want {
			if keys[name] != value {
				t.Errorf("expected %s=%v, got %v", name, value, keys[name])
			}
		}
		if len(keys) != len(want) {
			t.Errorf("expected %d slots, got %d", len(want), len(keys))
		}
	})

	t.Run("missing component aborts", func(t *testing.T) {
		_, err := schema.Synthesize(map[string]any{"userId": "u1", "action": "login"})
		if !errors.Is(err, ErrComposition) {
			t.Fatalf("expected ErrComposition, got %v", err)
		}

		var compErr *CompositionError
		if !errors.As(err, &compErr) {
			t.Fatalf("expected CompositionError, got %T", err)
		}
		if compErr.Attribute != "date" {
			t.Errorf("expected missing date, got %q", compErr.Attribute)
		}
	})

	t.Run("nil component counts as missing", func(t *testing.T) {
		_, err := schema.Synthesize(map[string]any{
			"userId": "u1", "date": nil, "action": "login",
		})
		if !errors.Is(err, ErrComposition) {
			t.Errorf("expected ErrComposition, got %v", err)
		}
	})
}

func TestSynthesizeAffected(t *testing.T) {
	schema := eventSchema(t)
	attrs := map[string]any{
		"userId": "u1", "date": "2020-01-01", "action": "logout",
	}

	t.Run("recomputes only dependent slots", func(t *testing.T) {
		keys, err := schema.SynthesizeAffected(attrs, []string{"action"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(keys) != 1 {
			t.Fatalf("expected 1 affected slot, got %d: %v", len(keys), keys)
		}
		if keys["gsi0_pk"] != "logout" {
			t.Errorf("expected gsi0_pk=logout, got %v", keys["gsi0_pk"])
		}
	})

	t.Run("shared component touches every dependent slot", func(t *testing.T) {
		keys, err := schema.SynthesizeAffected(attrs, []string{"date"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, ok := keys["sk"]; !ok {
			t.Error("expected sk to be recomputed")
		}
		if _, ok := keys["gsi0_sk"]; !ok {
			t.Error("expected gsi0_sk to be recomputed")
		}
		if _, ok := keys["pk"]; ok {
			t.Error("pk does not depend on date")
		}
	})

	t.Run("no affected slots", func(t *testing.T) {
		registry := NewRegistry()
		registry.MustRegister(EntitySchema{
			Type: "profile",
			Attributes: []AttributeDefinition{
				{Name: "id"},
				{Name: "bio"},
			},
			Bindings: []Binding{
				BindSlot(PartitionSlot(TableIndexName), Compose("id")),
				BindSlot(SortSlot(TableIndexName), Compose("id")),
			},
		})
		schema, _ := registry.Resolve("profile")

		keys, err := schema.SynthesizeAffected(map[string]any{"id": "p1", "bio": "hi"}, []string{"bio"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(keys) != 0 {
			t.Errorf("expected no affected slots, got %v", keys)
		}
	})
}

func TestValidateStored(t *testing.T) {
	schema := eventSchema(t)

	t.Run("conforming item passes", func(t *testing.T) {
		err := schema.ValidateStored(map[string]any{
			"userId": "u1", "date": "2020-01-01", "action": "login",
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("nil shadow attribute fails", func(t *testing.T) {
		err := schema.ValidateStored(map[string]any{
			"userId": "u1", "date": nil, "action": "login",
		})
		if !errors.Is(err, ErrInconsistentItem) {
			t.Errorf("expected ErrInconsistentItem, got %v", err)
		}
	})

	t.Run("non-shadow attribute may be absent", func(t *testing.T) {
		// source feeds no composition
		err := schema.ValidateStored(map[string]any{
			"userId": "u1", "date": "2020-01-01", "action": "login",
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestCheckImmutable(t *testing.T) {
	schema := eventSchema(t)
	previous := map[string]any{"userId": "u1", "date": "2020-01-01", "action": "login"}

	t.Run("no previous item", func(t *testing.T) {
		if err := checkImmutable(schema, nil, map[string]any{"userId": "u2"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unchanged immutable passes", func(t *testing.T) {
		proposed := map[string]any{"userId": "u1", "date": "2020-02-02", "action": "logout"}
		if err := checkImmutable(schema, previous, proposed); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("changed immutable rejected", func(t *testing.T) {
		proposed := map[string]any{"userId": "u2", "date": "2020-01-01", "action": "login"}
		err := checkImmutable(schema, previous, proposed)
		if !errors.Is(err, ErrImmutable) {
			t.Errorf("expected ErrImmutable, got %v", err)
		}
	})

	t.Run("unset immutable rejected", func(t *testing.T) {
		proposed := map[string]any{"date": "2020-01-01", "action": "login"}
		err := checkImmutable(schema, previous, proposed)
		if !errors.Is(err, ErrImmutable) {
			t.Errorf("expected ErrImmutable, got %v", err)
		}
	})

	t.Run("immutable without prior value may be set", func(t *testing.T) {
		prior := map[string]any{"date": "2020-01-01", "action": "login"}
		proposed := map[string]any{"userId": "u1", "date": "2020-01-01", "action": "login"}
		if err := checkImmutable(schema, prior, proposed); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestCheckImmutableScalarForms(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(EntitySchema{
		Type: "document",
		Attributes: []AttributeDefinition{
			{Name: "docId", Immutable: true},
			{Name: "version", Type: TypeNumber, Immutable: true},
			{Name: "checksum", Type: TypeBinary, Immutable: true},
		},
		Bindings: []Binding{
			BindSlot(PartitionSlot(TableIndexName), Compose("docId")),
			BindSlot(SortSlot(TableIndexName), Compose("docId")),
		},
	})
	schema, err := registry.Resolve("document")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Numbers hydrate as float64 and byte values as []byte, regardless of
	// the types the writer supplied.
	previous := map[string]any{"docId": "d1", "version": float64(5), "checksum": []byte{1, 2}}

	t.Run("number unchanged across stored and native forms", func(t *testing.T) {
		proposed := map[string]any{"docId": "d1", "version": 5, "checksum": []byte{1, 2}}
		if err := checkImmutable(schema, previous, proposed); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("changed number rejected", func(t *testing.T) {
		proposed := map[string]any{"docId": "d1", "version": 6, "checksum": []byte{1, 2}}
		if !errors.Is(checkImmutable(schema, previous, proposed), ErrImmutable) {
			t.Error("expected ErrImmutable for changed version")
		}
	})

	t.Run("byte values compare by content", func(t *testing.T) {
		proposed := map[string]any{"docId": "d1", "version": float64(5), "checksum": []byte{1, 2}}
		if err := checkImmutable(schema, previous, proposed); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		proposed["checksum"] = []byte{9}
		if !errors.Is(checkImmutable(schema, previous, proposed), ErrImmutable) {
			t.Error("expected ErrImmutable for changed checksum")
		}
	})
}

func TestImmutableGuards(t *testing.T) {
	schema := eventSchema(t)

	t.Run("nil previous yields no guards", func(t *testing.T) {
		if guards := immutableGuards(schema, nil); guards != nil {
			t.Errorf("expected nil guards, got %v", guards)
		}
	})

	t.Run("guards cover persisted immutable values", func(t *testing.T) {
		guards := immutableGuards(schema, map[string]any{
			"userId": "u1", "date": "2020-01-01",
		})
		if len(guards) != 1 || guards["userId"] != "u1" {
			t.Errorf("expected guard on userId only, got %v", guards)
		}
	})
}
