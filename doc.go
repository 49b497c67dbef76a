// Package tablemap maps human-readable entity attributes onto the
// generic key slots of a single DynamoDB table and synthesizes the
// wire requests that keep the two representations consistent.
//
// One physical table exposes a fixed index layout that unrelated entity
// types share:
//   - pk / sk: the table's partition and sort key
//   - lsi0_sk .. lsi4_sk: local secondary sort keys (partition is pk)
//   - gsi0_pk/gsi0_sk .. gsi19_pk/gsi19_sk: global secondary key pairs
//
// Entity types declare how their own attributes fill those slots with
// an index map: each bound slot holds either one attribute's value
// verbatim, or several attribute values joined in order with a
// delimiter. Values only ever flow from human attributes to index
// values; every attribute that feeds a composition is also stored
// directly, so reads validate rather than split keys apart.
//
// # Basic Usage
//
//	registry := tablemap.NewRegistry()
//	registry.MustRegister(tablemap.EntitySchema{
//	    Type: "event",
//	    Attributes: []tablemap.AttributeDefinition{
//	        {Name: "userId", Immutable: true},
//	        {Name: "date"},
//	        {Name: "action", Mutators: []string{"lowercase"}},
//	    },
//	    Bindings: []tablemap.Binding{
//	        {Slot: tablemap.PartitionSlot("table"), Composition: tablemap.Compose("userId")},
//	        {Slot: tablemap.SortSlot("table"), Composition: tablemap.Compose("userId", "date")},
//	        {Slot: tablemap.PartitionSlot("gsi0"), Composition: tablemap.Compose("action")},
//	        {Slot: tablemap.SortSlot("gsi0"), Composition: tablemap.Compose("date")},
//	    },
//	})
//
//	engine := tablemap.New(client, tablemap.NewTable("events"), registry)
//	rec, err := engine.NewRecord("event", map[string]any{
//	    "userId": "u1", "date": "2020-01-01", "action": "Login",
//	})
//	err = engine.Create(ctx, rec)
//
// Writes synthesize every bound slot (here sk = "u1~2020-01-01");
// queries compose their key conditions with the same rules, so a
// prefix or range over a composed sort key always lines up with what
// was stored:
//
//	records, err := engine.Query("event", tablemap.Query{
//	    Partition: map[string]any{"userId": "u1"},
//	    Sort:      tablemap.SortBeginsWith("u1", "2020"),
//	})
//	for records.Next(ctx) {
//	    rec := records.Record()
//	}
//
// Registries are populated once at startup and are read-only
// afterwards; registration failures (conflicting inheritance, unpaired
// index slots, slots outside the physical layout) are fatal
// configuration errors. Full-table scans are not supported; every read
// targets the table key or a bound secondary index.
package tablemap
