package tablemap

import (
	"fmt"
	"log"
)

// Example demonstrates declaring an entity type and synthesizing its
// index values without making actual AWS calls.
func Example() {
	registry := NewRegistry()
	registry.MustRegister(EntitySchema{
		Type: "event",
		Attributes: []AttributeDefinition{
			{Name: "userId", Immutable: true},
			{Name: "date"},
			{Name: "action", Mutators: []string{MutatorLowercase}},
		},
		Bindings: []Binding{
			BindSlot(PartitionSlot("table"), Compose("userId")),
			BindSlot(SortSlot("table"), Compose("userId", "date")),
			BindSlot(PartitionSlot("gsi0"), Compose("action")),
			BindSlot(SortSlot("gsi0"), Compose("date")),
		},
	})

	schema, err := registry.Resolve("event")
	if err != nil {
		log.Fatal(err)
	}

	rec, err := schema.NewRecord(map[string]any{
		"userId": "u1", "date": "2020-01-01", "action": "Login",
	})
	if err != nil {
		log.Fatal(err)
	}

	keys, err := schema.Synthesize(rec.Attributes())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("pk: %s\n", keys["pk"])
	fmt.Printf("sk: %s\n", keys["sk"])
	fmt.Printf("gsi0_pk: %s\n", keys["gsi0_pk"])

	// Output:
	// pk: u1
	// sk: u1~2020-01-01
	// gsi0_pk: login
}

// Example_query demonstrates composing a range query over a joined
// sort key.
func Example_query() {
	registry := NewRegistry()
	registry.MustRegister(EntitySchema{
		Type: "event",
		Attributes: []AttributeDefinition{
			{Name: "userId"},
			{Name: "date"},
		},
		Bindings: []Binding{
			BindSlot(PartitionSlot("table"), Compose("userId")),
			BindSlot(SortSlot("table"), Compose("userId", "date")),
		},
	})

	schema, _ := registry.Resolve("event")
	table := NewTable("events")

	// All of u1's events during 2020. The prefix is composed with the
	// same rules the write path uses, so it lines up with stored keys.
	input, err := table.MarshalQuery(schema, Query{
		Partition: map[string]any{"userId": "u1"},
		Sort:      SortPrefix("u1~2020"),
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("table: %s\n", *input.TableName)
	fmt.Printf("key condition: %s\n", *input.KeyConditionExpression)

	// Output:
	// table: events
	// key condition: (#0 = :0) AND (begins_with (#1, :1))
}
