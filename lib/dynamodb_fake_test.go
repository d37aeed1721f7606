package lib

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamoDB is an in memory DynamoDBAPI for one region.
type fakeDynamoDB struct {
	mu      sync.Mutex
	region  string
	tables  map[string]*ddbtypes.TableDescription
	ttl     map[string]*ddbtypes.TimeToLiveDescription
	calls   []string
	updates []*dynamodb.UpdateTableInput
	streams int

	// hideStreamArn is how many DescribeTable calls omit the stream arn, and
	// makes CreateTable and UpdateTable omit it too.
	hideStreamArn int
	describeErr   error
	createErr     error
}

func newFakeDynamoDB(region string) *fakeDynamoDB {
	return &fakeDynamoDB{
		region: region,
		tables: make(map[string]*ddbtypes.TableDescription),
		ttl:    make(map[string]*ddbtypes.TimeToLiveDescription),
	}
}

func fakeNotFound(name string) error {
	return &ddbtypes.ResourceNotFoundException{Message: aws.String("Requested resource not found: Table: " + name + " not found")}
}

func (f *fakeDynamoDB) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeDynamoDB) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, call := range f.calls {
		if call != "DescribeTable" && call != "DescribeTimeToLive" {
			out = append(out, call)
		}
	}
	return out
}

func (f *fakeDynamoDB) arn(name string) string {
	return fmt.Sprintf("arn:aws:dynamodb:%s:123456789012:table/%s", f.region, name)
}

func (f *fakeDynamoDB) newStreamArn(name string) string {
	f.streams++
	return fmt.Sprintf("%s/stream/2024-01-01T00:00:%02d.000", f.arn(name), f.streams)
}

func (f *fakeDynamoDB) copyTable(table *ddbtypes.TableDescription, hideStream bool) *ddbtypes.TableDescription {
	out := *table
	if hideStream {
		out.LatestStreamArn = nil
	}
	return &out
}

func (f *fakeDynamoDB) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTable")
	if f.createErr != nil {
		return nil, f.createErr
	}
	name := aws.ToString(input.TableName)
	if _, ok := f.tables[name]; ok {
		return nil, &ddbtypes.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}
	table := &ddbtypes.TableDescription{
		TableName:            input.TableName,
		TableArn:             aws.String(f.arn(name)),
		TableStatus:          ddbtypes.TableStatusActive,
		AttributeDefinitions: input.AttributeDefinitions,
		KeySchema:            input.KeySchema,
		ItemCount:            aws.Int64(0),
		TableSizeBytes:       aws.Int64(0),
		CreationDateTime:     aws.Time(time.Unix(1700000000, 0).UTC()),
	}
	for _, index := range input.GlobalSecondaryIndexes {
		table.GlobalSecondaryIndexes = append(table.GlobalSecondaryIndexes, ddbtypes.GlobalSecondaryIndexDescription{
			IndexName:   index.IndexName,
			IndexArn:    aws.String(f.arn(name) + "/index/" + aws.ToString(index.IndexName)),
			IndexStatus: ddbtypes.IndexStatusActive,
			KeySchema:   index.KeySchema,
			Projection:  index.Projection,
		})
	}
	for _, index := range input.LocalSecondaryIndexes {
		table.LocalSecondaryIndexes = append(table.LocalSecondaryIndexes, ddbtypes.LocalSecondaryIndexDescription{
			IndexName:  index.IndexName,
			IndexArn:   aws.String(f.arn(name) + "/index/" + aws.ToString(index.IndexName)),
			KeySchema:  index.KeySchema,
			Projection: index.Projection,
		})
	}
	if input.StreamSpecification != nil && aws.ToBool(input.StreamSpecification.StreamEnabled) {
		table.StreamSpecification = input.StreamSpecification
		table.LatestStreamArn = aws.String(f.newStreamArn(name))
	}
	f.tables[name] = table
	return &dynamodb.CreateTableOutput{TableDescription: f.copyTable(table, f.hideStreamArn > 0)}, nil
}

func (f *fakeDynamoDB) DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DescribeTable")
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	name := aws.ToString(input.TableName)
	table, ok := f.tables[name]
	if !ok {
		return nil, fakeNotFound(name)
	}
	hide := f.hideStreamArn > 0
	if hide {
		f.hideStreamArn--
	}
	return &dynamodb.DescribeTableOutput{Table: f.copyTable(table, hide)}, nil
}

func (f *fakeDynamoDB) UpdateTable(ctx context.Context, input *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTable")
	f.updates = append(f.updates, input)
	name := aws.ToString(input.TableName)
	table, ok := f.tables[name]
	if !ok {
		return nil, fakeNotFound(name)
	}
	for _, update := range input.GlobalSecondaryIndexUpdates {
		if update.Create != nil {
			table.GlobalSecondaryIndexes = append(table.GlobalSecondaryIndexes, ddbtypes.GlobalSecondaryIndexDescription{
				IndexName:   update.Create.IndexName,
				IndexArn:    aws.String(f.arn(name) + "/index/" + aws.ToString(update.Create.IndexName)),
				IndexStatus: ddbtypes.IndexStatusCreating,
				KeySchema:   update.Create.KeySchema,
				Projection:  update.Create.Projection,
			})
		}
		if update.Delete != nil {
			var kept []ddbtypes.GlobalSecondaryIndexDescription
			for _, index := range table.GlobalSecondaryIndexes {
				if aws.ToString(index.IndexName) != aws.ToString(update.Delete.IndexName) {
					kept = append(kept, index)
				}
			}
			table.GlobalSecondaryIndexes = kept
		}
	}
	table.AttributeDefinitions = fakeKeyAttrs(table, input.AttributeDefinitions)
	if input.StreamSpecification != nil {
		if aws.ToBool(input.StreamSpecification.StreamEnabled) {
			table.StreamSpecification = input.StreamSpecification
			table.LatestStreamArn = aws.String(f.newStreamArn(name))
		} else {
			table.StreamSpecification = &ddbtypes.StreamSpecification{StreamEnabled: aws.Bool(false)}
		}
	}
	return &dynamodb.UpdateTableOutput{TableDescription: f.copyTable(table, f.hideStreamArn > 0)}, nil
}

// fakeKeyAttrs keeps only the attribute definitions still used by a key, as
// dynamodb does after an index change.
func fakeKeyAttrs(table *ddbtypes.TableDescription, added []ddbtypes.AttributeDefinition) []ddbtypes.AttributeDefinition {
	used := make(map[string]bool)
	for _, key := range table.KeySchema {
		used[aws.ToString(key.AttributeName)] = true
	}
	for _, index := range table.GlobalSecondaryIndexes {
		for _, key := range index.KeySchema {
			used[aws.ToString(key.AttributeName)] = true
		}
	}
	for _, index := range table.LocalSecondaryIndexes {
		for _, key := range index.KeySchema {
			used[aws.ToString(key.AttributeName)] = true
		}
	}
	var out []ddbtypes.AttributeDefinition
	seen := make(map[string]bool)
	for _, attr := range append(append([]ddbtypes.AttributeDefinition{}, added...), table.AttributeDefinitions...) {
		name := aws.ToString(attr.AttributeName)
		if used[name] && !seen[name] {
			seen[name] = true
			out = append(out, attr)
		}
	}
	return out
}

func (f *fakeDynamoDB) DeleteTable(ctx context.Context, input *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTable")
	name := aws.ToString(input.TableName)
	table, ok := f.tables[name]
	if !ok {
		return nil, fakeNotFound(name)
	}
	delete(f.tables, name)
	delete(f.ttl, name)
	return &dynamodb.DeleteTableOutput{TableDescription: f.copyTable(table, false)}, nil
}

func (f *fakeDynamoDB) DescribeTimeToLive(ctx context.Context, input *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DescribeTimeToLive")
	name := aws.ToString(input.TableName)
	if _, ok := f.tables[name]; !ok {
		return nil, fakeNotFound(name)
	}
	ttl, ok := f.ttl[name]
	if !ok {
		ttl = &ddbtypes.TimeToLiveDescription{TimeToLiveStatus: ddbtypes.TimeToLiveStatusDisabled}
	}
	return &dynamodb.DescribeTimeToLiveOutput{TimeToLiveDescription: ttl}, nil
}

func (f *fakeDynamoDB) UpdateTimeToLive(ctx context.Context, input *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTimeToLive")
	name := aws.ToString(input.TableName)
	if _, ok := f.tables[name]; !ok {
		return nil, fakeNotFound(name)
	}
	status := ddbtypes.TimeToLiveStatusDisabled
	if aws.ToBool(input.TimeToLiveSpecification.Enabled) {
		status = ddbtypes.TimeToLiveStatusEnabled
	}
	f.ttl[name] = &ddbtypes.TimeToLiveDescription{
		AttributeName:    input.TimeToLiveSpecification.AttributeName,
		TimeToLiveStatus: status,
	}
	return &dynamodb.UpdateTimeToLiveOutput{TimeToLiveSpecification: input.TimeToLiveSpecification}, nil
}

type testComponent struct {
	*DynamoDBComponent
	fakes       map[string]*fakeDynamoDB
	clock       *fakeclock.FakeClock
	clientCalls int
	statePath   string
}

func newTestComponent(t *testing.T) *testComponent {
	tc := &testComponent{
		fakes:     make(map[string]*fakeDynamoDB),
		clock:     fakeclock.NewFakeClock(time.Unix(1700000000, 0)),
		statePath: filepath.Join(t.TempDir(), "state.yaml"),
	}
	suffix := 0
	tc.DynamoDBComponent = &DynamoDBComponent{
		Store: &StateFile{Path: tc.statePath},
		Client: func(region string) (DynamoDBAPI, error) {
			tc.clientCalls++
			return tc.fake(region), nil
		},
		Clock: tc.clock,
		NameSuffix: func() string {
			suffix++
			return fmt.Sprintf("%012d", suffix)
		},
	}
	return tc
}

func (tc *testComponent) fake(region string) *fakeDynamoDB {
	f, ok := tc.fakes[region]
	if !ok {
		f = newFakeDynamoDB(region)
		tc.fakes[region] = f
	}
	return f
}

func (tc *testComponent) mutations() []string {
	var out []string
	for _, f := range tc.fakes {
		out = append(out, f.mutations()...)
	}
	return out
}

func (tc *testComponent) resetCalls() {
	for _, f := range tc.fakes {
		f.mu.Lock()
		f.calls = nil
		f.updates = nil
		f.mu.Unlock()
	}
	tc.clientCalls = 0
}

func (tc *testComponent) state(t *testing.T) DynamoDBState {
	state, err := tc.Store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return state
}
