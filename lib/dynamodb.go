package lib

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of *dynamodb.Client used to reconcile a table.
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTimeToLive(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

var dynamoDBClients = make(map[string]*dynamodb.Client)
var dynamoDBClientsLock sync.Mutex

func DynamoDBClientRegion(region string) (*dynamodb.Client, error) {
	dynamoDBClientsLock.Lock()
	defer dynamoDBClientsLock.Unlock()
	client, ok := dynamoDBClients[region]
	if !ok {
		cfg, err := SessionRegion(region)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		client = dynamodb.NewFromConfig(*cfg)
		dynamoDBClients[region] = client
	}
	return client, nil
}

func DynamoDBClientExplicit(accessKeyID, accessKeySecret, sessionToken, region string) (*dynamodb.Client, error) {
	cfg, err := SessionExplicit(accessKeyID, accessKeySecret, sessionToken, region)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return dynamodb.NewFromConfig(*cfg), nil
}

type DynamoDBSnapshot struct {
	Arn                    string          `json:"arn"`
	Name                   string          `json:"name"`
	Status                 string          `json:"status"`
	AttributeDefinitions   []DynamoDBAttr  `json:"attributeDefinitions"`
	KeySchema              []DynamoDBKey   `json:"keySchema"`
	GlobalSecondaryIndexes []DynamoDBIndex `json:"globalSecondaryIndexes,omitempty"`
	LocalSecondaryIndexes  []DynamoDBIndex `json:"localSecondaryIndexes,omitempty"`
	StreamArn              string          `json:"streamArn,omitempty"`
	StreamEnabled          bool            `json:"streamEnabled"`
	StreamViewType         string          `json:"streamViewType,omitempty"`
	ItemCount              int64           `json:"itemCount"`
	SizeBytes              int64           `json:"sizeBytes"`
	Created                time.Time       `json:"created"`
}

func isDynamoDBNotFound(err error) bool {
	var rnf *ddbtypes.ResourceNotFoundException
	return errors.As(err, &rnf)
}

func fromDynamoDBKeys(keys []ddbtypes.KeySchemaElement) []DynamoDBKey {
	var out []DynamoDBKey
	for _, key := range keys {
		out = append(out, DynamoDBKey{Name: aws.ToString(key.AttributeName), KeyType: string(key.KeyType)})
	}
	return out
}

func toDynamoDBKeys(keys []DynamoDBKey) []ddbtypes.KeySchemaElement {
	var out []ddbtypes.KeySchemaElement
	for _, key := range keys {
		out = append(out, ddbtypes.KeySchemaElement{
			AttributeName: aws.String(key.Name),
			KeyType:       ddbtypes.KeyType(key.KeyType),
		})
	}
	return out
}

func toDynamoDBAttrs(attrs []DynamoDBAttr) []ddbtypes.AttributeDefinition {
	var out []ddbtypes.AttributeDefinition
	for _, attr := range attrs {
		out = append(out, ddbtypes.AttributeDefinition{
			AttributeName: aws.String(attr.Name),
			AttributeType: ddbtypes.ScalarAttributeType(attr.Type),
		})
	}
	return out
}

func fromDynamoDBProjection(p *ddbtypes.Projection) DynamoDBProjection {
	if p == nil {
		return DynamoDBProjection{}
	}
	return DynamoDBProjection{Type: string(p.ProjectionType), NonKeyAttributes: p.NonKeyAttributes}
}

func toDynamoDBProjection(p DynamoDBProjection) *ddbtypes.Projection {
	return &ddbtypes.Projection{
		ProjectionType:   ddbtypes.ProjectionType(p.Type),
		NonKeyAttributes: p.NonKeyAttributes,
	}
}

func dynamoDBSnapshot(table *ddbtypes.TableDescription) *DynamoDBSnapshot {
	snapshot := &DynamoDBSnapshot{
		Arn:       aws.ToString(table.TableArn),
		Name:      aws.ToString(table.TableName),
		Status:    string(table.TableStatus),
		KeySchema: fromDynamoDBKeys(table.KeySchema),
		StreamArn: aws.ToString(table.LatestStreamArn),
		ItemCount: aws.ToInt64(table.ItemCount),
		SizeBytes: aws.ToInt64(table.TableSizeBytes),
		Created:   aws.ToTime(table.CreationDateTime),
	}
	for _, attr := range table.AttributeDefinitions {
		snapshot.AttributeDefinitions = append(snapshot.AttributeDefinitions, DynamoDBAttr{
			Name: aws.ToString(attr.AttributeName),
			Type: string(attr.AttributeType),
		})
	}
	for _, index := range table.GlobalSecondaryIndexes {
		snapshot.GlobalSecondaryIndexes = append(snapshot.GlobalSecondaryIndexes, DynamoDBIndex{
			Name:       aws.ToString(index.IndexName),
			KeySchema:  fromDynamoDBKeys(index.KeySchema),
			Projection: fromDynamoDBProjection(index.Projection),
		})
	}
	for _, index := range table.LocalSecondaryIndexes {
		snapshot.LocalSecondaryIndexes = append(snapshot.LocalSecondaryIndexes, DynamoDBIndex{
			Name:       aws.ToString(index.IndexName),
			KeySchema:  fromDynamoDBKeys(index.KeySchema),
			Projection: fromDynamoDBProjection(index.Projection),
		})
	}
	if table.StreamSpecification != nil && aws.ToBool(table.StreamSpecification.StreamEnabled) {
		snapshot.StreamEnabled = true
		snapshot.StreamViewType = string(table.StreamSpecification.StreamViewType)
	}
	return snapshot
}

// DynamoDBDescribe returns nil, nil when the table does not exist.
func DynamoDBDescribe(ctx context.Context, api DynamoDBAPI, name string) (*DynamoDBSnapshot, error) {
	if name == "" {
		return nil, nil
	}
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBDescribe"}
		d.Start()
		defer d.End()
	}
	out, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
	if err != nil {
		if isDynamoDBNotFound(err) {
			return nil, nil
		}
		Logger.Println("error:", err)
		return nil, err
	}
	return dynamoDBSnapshot(out.Table), nil
}

func dynamoDBStreamSpecification(enabled bool, viewType string) *ddbtypes.StreamSpecification {
	if !enabled {
		return &ddbtypes.StreamSpecification{StreamEnabled: aws.Bool(false)}
	}
	return &ddbtypes.StreamSpecification{
		StreamEnabled:  aws.Bool(true),
		StreamViewType: ddbtypes.StreamViewType(viewType),
	}
}

func dynamoDBCreateTableInput(name string, cfg DynamoDBConfig) *dynamodb.CreateTableInput {
	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		BillingMode:          ddbtypes.BillingModePayPerRequest,
		AttributeDefinitions: toDynamoDBAttrs(cfg.AttributeDefinitions),
		KeySchema:            toDynamoDBKeys(cfg.KeySchema),
	}
	for _, index := range cfg.GlobalSecondaryIndexes {
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, ddbtypes.GlobalSecondaryIndex{
			IndexName:  aws.String(index.Name),
			KeySchema:  toDynamoDBKeys(index.KeySchema),
			Projection: toDynamoDBProjection(index.Projection),
		})
	}
	for _, index := range cfg.LocalSecondaryIndexes {
		input.LocalSecondaryIndexes = append(input.LocalSecondaryIndexes, ddbtypes.LocalSecondaryIndex{
			IndexName:  aws.String(index.Name),
			KeySchema:  toDynamoDBKeys(index.KeySchema),
			Projection: toDynamoDBProjection(index.Projection),
		})
	}
	if cfg.StreamEnabled() {
		input.StreamSpecification = dynamoDBStreamSpecification(true, cfg.StreamViewType)
	}
	return input
}

// DynamoDBCreateTable returns the table arn and the stream arn, if any.
func DynamoDBCreateTable(ctx context.Context, api DynamoDBAPI, name string, cfg DynamoDBConfig) (string, string, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBCreateTable"}
		d.Start()
		defer d.End()
	}
	out, err := api.CreateTable(ctx, dynamoDBCreateTableInput(name, cfg))
	if err != nil {
		Logger.Println("error:", err)
		return "", "", err
	}
	return aws.ToString(out.TableDescription.TableArn), aws.ToString(out.TableDescription.LatestStreamArn), nil
}

type DynamoDBUpdate struct {
	AttributeDefinitions []DynamoDBAttr
	Indexes              DynamoDBIndexPlan
	Stream               DynamoDBStreamPlan
}

func (u DynamoDBUpdate) Empty() bool {
	return u.Indexes.Empty() && u.Stream.Action == DynamoDBStreamNoop
}

func dynamoDBUpdateTableInput(name string, update DynamoDBUpdate) *dynamodb.UpdateTableInput {
	input := &dynamodb.UpdateTableInput{
		TableName:                   aws.String(name),
		GlobalSecondaryIndexUpdates: update.Indexes.Updates(),
	}
	if update.Indexes.Create != nil {
		input.AttributeDefinitions = toDynamoDBAttrs(update.AttributeDefinitions)
	}
	switch update.Stream.Action {
	case DynamoDBStreamEnable:
		input.StreamSpecification = dynamoDBStreamSpecification(true, update.Stream.ViewType)
	case DynamoDBStreamDisable:
		input.StreamSpecification = dynamoDBStreamSpecification(false, "")
	}
	return input
}

// DynamoDBUpdateTable issues one UpdateTable call and returns the table arn and the stream arn, if any.
func DynamoDBUpdateTable(ctx context.Context, api DynamoDBAPI, name string, update DynamoDBUpdate) (string, string, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBUpdateTable"}
		d.Start()
		defer d.End()
	}
	out, err := api.UpdateTable(ctx, dynamoDBUpdateTableInput(name, update))
	if err != nil {
		Logger.Println("error:", err)
		return "", "", err
	}
	return aws.ToString(out.TableDescription.TableArn), aws.ToString(out.TableDescription.LatestStreamArn), nil
}

// DynamoDBDeleteTable treats a missing table as already deleted.
func DynamoDBDeleteTable(ctx context.Context, api DynamoDBAPI, name string, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBDeleteTable"}
		d.Start()
		defer d.End()
	}
	if !preview {
		_, err := api.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(name),
		})
		if err != nil {
			if isDynamoDBNotFound(err) {
				Logger.Println("table already deleted:", name)
				return nil
			}
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println(PreviewString(preview)+"deleted table:", name)
	return nil
}

func sortedAttrs(attrs []DynamoDBAttr) []DynamoDBAttr {
	out := append([]DynamoDBAttr{}, attrs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
