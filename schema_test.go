package tablemap

import (
	"errors"
	"testing"
)

func TestIndexSlotAttributeName(t *testing.T) {
	tests := []struct {
		slot IndexSlot
		want string
	}{
		{PartitionSlot(TableIndexName), "pk"},
		{SortSlot(TableIndexName), "sk"},
		{SortSlot("lsi0"), "lsi0_sk"},
		{SortSlot("lsi4"), "lsi4_sk"},
		{PartitionSlot("gsi0"), "gsi0_pk"},
		{SortSlot("gsi19"), "gsi19_sk"},
	}

	for _, tt := range tests {
		if got := tt.slot.AttributeName(); got != tt.want {
			t.Errorf("%s: expected attribute %q, got %q", tt.slot, tt.want, got)
		}
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"table", true},
		{"lsi0", true},
		{"lsi4", true},
		{"lsi5", false},
		{"gsi0", true},
		{"gsi19", true},
		{"gsi20", false},
		{"gsi-1", false},
		{"gsi", false},
		{"lsi01", false},
		{"gsi007", false},
		{"gsi+1", false},
		{"gsi 1", false},
		{"index7", false},
		{"", false},
	}

	for _, tt := range tests {
		if _, _, ok := parseIndex(tt.name); ok != tt.ok {
			t.Errorf("parseIndex(%q): expected ok=%v, got %v", tt.name, tt.ok, ok)
		}
	}
}

func TestIsPhysicalAttribute(t *testing.T) {
	physical := []string{"pk", "sk", "lsi0_sk", "lsi4_sk", "gsi0_pk", "gsi19_sk"}
	for _, name := range physical {
		if !isPhysicalAttribute(name) {
			t.Errorf("expected %q to be physical", name)
		}
	}

	human := []string{"userId", "date", "lsi0_pk", "lsi5_sk", "gsi20_pk", "gsi0_xx", "pkx"}
	for _, name := range human {
		if isPhysicalAttribute(name) {
			t.Errorf("expected %q to be a human attribute", name)
		}
	}
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		value any
		want  string
		ok    bool
	}{
		{"abc", "abc", true},
		{[]byte("raw"), "raw", true},
		{true, "true", true},
		{42, "42", true},
		{int64(42), "42", true},
		{2.5, "2.5", true},
		{map[string]any{}, "", false},
		{nil, "", false},
	}

	for _, tt := range tests {
		got, ok := keyString(tt.value)
		if ok != tt.ok || got != tt.want {
			t.Errorf("keyString(%v): expected (%q, %v), got (%q, %v)", tt.value, tt.want, tt.ok, got, ok)
		}
	}
}

func TestAttributeEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal strings", "u1", "u1", true},
		{"different strings", "u1", "u2", false},
		{"int against stored float", 5, float64(5), true},
		{"different numbers", 5, float64(6), false},
		{"equal byte slices", []byte{1, 2}, []byte{1, 2}, true},
		{"different byte slices", []byte{1, 2}, []byte{9}, false},
		{"equal maps", map[string]any{"a": 1}, map[string]any{"a": 1}, true},
		{"map against scalar", map[string]any{"a": 1}, "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := attributeEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("attributeEqual(%v, %v): expected %v, got %v", tt.a, tt.b, tt.want, got)
			}
		})
	}
}

func TestSchemaValidation(t *testing.T) {
	base := func() EntitySchema {
		return EntitySchema{
			Type: "event",
			Attributes: []AttributeDefinition{
				{Name: "userId"},
				{Name: "date"},
			},
			Bindings: []Binding{
				BindSlot(PartitionSlot(TableIndexName), Compose("userId")),
				BindSlot(SortSlot(TableIndexName), Compose("userId", "date")),
			},
		}
	}

	t.Run("valid schema", func(t *testing.T) {
		if err := NewRegistry().Register(base()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing table sort key", func(t *testing.T) {
		def := base()
		def.Bindings = def.Bindings[:1]
		err := NewRegistry().Register(def)
		if !errors.Is(err, ErrSchemaConflict) {
			t.Errorf("expected schema conflict, got %v", err)
		}
	})

	t.Run("slot beyond gsi range", func(t *testing.T) {
		def := base()
		def.Bindings = append(def.Bindings,
			BindSlot(PartitionSlot("gsi20"), Compose("date")),
			BindSlot(SortSlot("gsi20"), Compose("userId")),
		)
		err := NewRegistry().Register(def)
		if !errors.Is(err, ErrIndexOverflow) {
			t.Errorf("expected index overflow, got %v", err)
		}
	})

	t.Run("slot beyond lsi range", func(t *testing.T) {
		def := base()
		def.Bindings = append(def.Bindings, BindSlot(SortSlot("lsi5"), Compose("date")))
		err := NewRegistry().Register(def)
		if !errors.Is(err, ErrIndexOverflow) {
			t.Errorf("expected index overflow, got %v", err)
		}
	})

	t.Run("non-canonical index name rejected", func(t *testing.T) {
		def := base()
		def.Bindings = append(def.Bindings, BindSlot(SortSlot("lsi01"), Compose("date")))
		err := NewRegistry().Register(def)
		if !errors.Is(err, ErrIndexOverflow) {
			t.Errorf("expected index overflow, got %v", err)
		}
	})

	t.Run("lsi partition slot rejected", func(t *testing.T) {
		def := base()
		def.Bindings = append(def.Bindings, BindSlot(PartitionSlot("lsi0"), Compose("date")))
		err := NewRegistry().Register(def)
		if !errors.Is(err, ErrSchemaConflict) {
			t.Errorf("expected schema conflict, got %v", err)
		}
	})

	t.Run("gsi sort without partition", func(t *testing.T) {
		def := base()
		def.Bindings = append(def.Bindings, BindSlot(SortSlot("gsi0"), Compose("date")))
		err := NewRegistry().Register(def)
		if !errors.Is(err, ErrSchemaConflict) {
			t.Errorf("expected schema conflict, got %v", err)
		}
	})

	t.Run("composition references undeclared attribute", func(t *testing.T) {
		def := base()
		def.Bindings[1] = BindSlot(SortSlot(TableIndexName), Compose("userId", "created"))
		err := NewRegistry().Register(def)
		if !errors.Is(err, ErrSchemaConflict) {
			t.Errorf("expected schema conflict, got %v", err)
		}
	})

	t.Run("attribute shadows physical name", func(t *testing.T) {
		def := base()
		def.Attributes = append(def.Attributes, AttributeDefinition{Name: "gsi0_pk"})
		err := NewRegistry().Register(def)
		if !errors.Is(err, ErrSchemaConflict) {
			t.Errorf("expected schema conflict, got %v", err)
		}
	})

	t.Run("empty composition", func(t *testing.T) {
		def := base()
		def.Bindings[0] = BindSlot(PartitionSlot(TableIndexName), Compose())
		err := NewRegistry().Register(def)
		if !errors.Is(err, ErrSchemaConflict) {
			t.Errorf("expected schema conflict, got %v", err)
		}
	})
}

func TestKeyCompositionCompose(t *testing.T) {
	t.Run("direct binding preserves type", func(t *testing.T) {
		comp := Compose("count")
		value, missing := comp.compose(map[string]any{"count": 42})
		if missing != "" {
			t.Fatalf("unexpected missing attribute %q", missing)
		}
		if value != 42 {
			t.Errorf("expected 42, got %v", value)
		}
	})

	t.Run("joined binding uses delimiter", func(t *testing.T) {
		comp := Compose("userId", "date")
		value, missing := comp.compose(map[string]any{"userId": "u1", "date": "2020-01-01"})
		if missing != "" {
			t.Fatalf("unexpected missing attribute %q", missing)
		}
		if value != "u1~2020-01-01" {
			t.Errorf("expected u1~2020-01-01, got %v", value)
		}
	})

	t.Run("custom delimiter", func(t *testing.T) {
		comp := KeyComposition{Attributes: []string{"a", "b"}, Delimiter: "#"}
		value, _ := comp.compose(map[string]any{"a": "x", "b": "y"})
		if value != "x#y" {
			t.Errorf("expected x#y, got %v", value)
		}
	})

	t.Run("missing component reported by name", func(t *testing.T) {
		comp := Compose("userId", "date")
		_, missing := comp.compose(map[string]any{"userId": "u1"})
		if missing != "date" {
			t.Errorf("expected missing date, got %q", missing)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		comp := Compose("a", "b", "c")
		attrs := map[string]any{"a": "1", "b": "2", "c": "3"}
		first, _ := comp.compose(attrs)
		for i := 0; i < 10; i++ {
			again, _ := comp.compose(attrs)
			if again != first {
				t.Fatalf("composition is not deterministic: %v vs %v", first, again)
			}
		}
	})
}
