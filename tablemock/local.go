package tablemock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/tablemap"
)

// LocalDynamoDB represents a connection to a local DynamoDB instance.
type LocalDynamoDB struct {
	Client   *dynamodb.Client
	Endpoint string
	Port     int
}

// DefaultLocalPort is the default port for DynamoDB Local.
const DefaultLocalPort = 8000

// NewLocalClient creates a DynamoDB client configured to connect to a
// local DynamoDB instance. This is useful for integration testing with
// DynamoDB Local.
func NewLocalClient(port int) *dynamodb.Client {
	endpoint := fmt.Sprintf("http://localhost:%d", port)

	cfg := aws.Config{
		Region:      "us-east-1", // DynamoDB Local doesn't care about region
		Credentials: aws.AnonymousCredentials{},
		EndpointResolverWithOptions: aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:           endpoint,
					SigningRegion: region,
				}, nil
			},
		),
	}

	return dynamodb.NewFromConfig(cfg)
}

// NewLocalDynamoDB creates a LocalDynamoDB instance with the specified port.
func NewLocalDynamoDB(port int) *LocalDynamoDB {
	return &LocalDynamoDB{
		Client:   NewLocalClient(port),
		Endpoint: fmt.Sprintf("http://localhost:%d", port),
		Port:     port,
	}
}

// NewDefaultLocalDynamoDB creates a LocalDynamoDB instance using the default port (8000).
func NewDefaultLocalDynamoDB() *LocalDynamoDB {
	return NewLocalDynamoDB(DefaultLocalPort)
}

// IsAvailable checks if DynamoDB Local is running on the configured port.
func (l *LocalDynamoDB) IsAvailable(ctx context.Context) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", l.Port), 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()

	_, err = l.Client.ListTables(ctx, &dynamodb.ListTablesInput{})
	return err == nil
}

// WaitForAvailable waits for DynamoDB Local to become available.
// Returns an error if it doesn't become available within the timeout.
func (l *LocalDynamoDB) WaitForAvailable(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if l.IsAvailable(ctx) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("DynamoDB Local not available at %s after %v", l.Endpoint, timeout)
}

// CreateTableForRegistry creates a table whose key schema and secondary
// indexes cover every index slot bound by any entity type in the
// registry. Attribute definitions are declared only for bound slots;
// slot types come from the composed attributes (joined compositions are
// always strings).
func (l *LocalDynamoDB) CreateTableForRegistry(ctx context.Context, tableName string, registry *tablemap.Registry) error {
	input, err := tableInputForRegistry(tableName, registry)
	if err != nil {
		return err
	}

	if _, err := l.Client.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return l.WaitForTableActive(ctx, tableName, 30*time.Second)
}

func tableInputForRegistry(tableName string, registry *tablemap.Registry) (*dynamodb.CreateTableInput, error) {
	// physical attribute name -> scalar type, across all entity types
	attrTypes := make(map[string]types.ScalarAttributeType)
	indexes := make(map[string]bool)

	for _, entityType := range registry.Types() {
		schema, err := registry.Resolve(entityType)
		if err != nil {
			return nil, err
		}
		for _, binding := range schema.Bindings() {
			name := binding.Slot.AttributeName()
			scalar, err := scalarType(schema, binding.Composition)
			if err != nil {
				return nil, fmt.Errorf("slot %s of %s: %w", binding.Slot, entityType, err)
			}
			if existing, ok := attrTypes[name]; ok && existing != scalar {
				return nil, fmt.Errorf("attribute %s bound as both %s and %s", name, existing, scalar)
			}
			attrTypes[name] = scalar
			indexes[binding.Slot.Index] = true
		}
	}

	if _, ok := attrTypes[tablemap.AttributeNamePartition]; !ok {
		return nil, fmt.Errorf("registry binds no table partition key")
	}
	if _, ok := attrTypes[tablemap.AttributeNameSort]; !ok {
		return nil, fmt.Errorf("registry binds no table sort key")
	}

	throughput := &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(5),
		WriteCapacityUnits: aws.Int64(5),
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(tablemap.AttributeNamePartition), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(tablemap.AttributeNameSort), KeyType: types.KeyTypeRange},
		},
		ProvisionedThroughput: throughput,
	}

	names := make([]string, 0, len(attrTypes))
	for name := range attrTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: attrTypes[name],
		})
	}

	indexNames := make([]string, 0, len(indexes))
	for name := range indexes {
		if name != tablemap.TableIndexName {
			indexNames = append(indexNames, name)
		}
	}
	sort.Strings(indexNames)

	for _, index := range indexNames {
		if strings.HasPrefix(index, "lsi") {
			input.LocalSecondaryIndexes = append(input.LocalSecondaryIndexes, types.LocalSecondaryIndex{
				IndexName: aws.String(index),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(tablemap.AttributeNamePartition), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String(index + "_sk"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			})
			continue
		}
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName: aws.String(index),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(index + "_pk"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(index + "_sk"), KeyType: types.KeyTypeRange},
			},
			Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
			ProvisionedThroughput: throughput,
		})
	}

	return input, nil
}

func scalarType(schema *tablemap.Schema, comp tablemap.KeyComposition) (types.ScalarAttributeType, error) {
	if len(comp.Attributes) != 1 {
		return types.ScalarAttributeTypeS, nil
	}
	attr, ok := schema.Attribute(comp.Attributes[0])
	if !ok {
		return "", fmt.Errorf("unknown attribute %q", comp.Attributes[0])
	}
	switch attr.Type {
	case tablemap.TypeString, "":
		return types.ScalarAttributeTypeS, nil
	case tablemap.TypeNumber:
		return types.ScalarAttributeTypeN, nil
	case tablemap.TypeBinary:
		return types.ScalarAttributeTypeB, nil
	default:
		return "", fmt.Errorf("type %s cannot be a key attribute", attr.Type)
	}
}

// WaitForTableActive waits for a table to become active.
func (l *LocalDynamoDB) WaitForTableActive(ctx context.Context, tableName string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		output, err := l.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %w", tableName, err)
		}

		if output.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	return fmt.Errorf("table %s did not become active within %v", tableName, timeout)
}

// DeleteTable deletes a table and waits for it to be fully deleted.
func (l *LocalDynamoDB) DeleteTable(ctx context.Context, tableName string) error {
	_, err := l.Client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete table %s: %w", tableName, err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		_, err := l.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil
			}
			return fmt.Errorf("error checking table deletion status: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	return fmt.Errorf("table %s was not deleted within 30s", tableName)
}
