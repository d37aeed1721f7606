package cliaws

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"github.com/nathants/libddb/lib"
)

func init() {
	lib.Commands["dynamodb-describe"] = dynamodbDescribe
	lib.Args["dynamodb-describe"] = dynamodbDescribeArgs{}
}

type dynamodbDescribeArgs struct {
	Table  string `arg:"positional,required" help:"table name"`
	Region string `arg:"-r,--region" help:"defaults to AWS_REGION"`
	JSON   bool   `arg:"-j,--json" help:"print the full snapshot as json"`
	Args   bool   `arg:"-a,--args" help:"print keys and attrs for dynamodb-deploy"`
}

func (dynamodbDescribeArgs) Description() string {
	return "\ndescribe dynamodb table\n"
}

func dynamodbDescribe() {
	var args dynamodbDescribeArgs
	arg.MustParse(&args)
	ctx := context.Background()
	region := args.Region
	if region == "" {
		region = lib.Region()
	}
	client, err := lib.DynamoDBClientRegion(region)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	snapshot, err := lib.DynamoDBDescribe(ctx, client, args.Table)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	if snapshot == nil {
		lib.Logger.Fatal("error: no such table: ", args.Table)
	}
	if args.JSON {
		fmt.Println(lib.Pformat(snapshot))
		return
	}
	if args.Args {
		keys, attrs := lib.DynamoDBSnapshotArgs(snapshot)
		fmt.Println(strings.Join(append(keys, attrs...), " "))
		return
	}
	attrs := make(map[string]string)
	for _, attr := range snapshot.AttributeDefinitions {
		attrs[attr.Name] = attr.Type
	}
	keyString := func(keys []lib.DynamoDBKey) string {
		var vals []string
		for _, key := range keys {
			vals = append(vals, strings.ToLower(strings.Join([]string{key.Name, attrs[key.Name], key.KeyType}, ":")))
		}
		return strings.Join(vals, " ")
	}
	fmt.Println("table:", snapshot.Name, snapshot.Status)
	fmt.Println("keys:", keyString(snapshot.KeySchema))
	for _, index := range snapshot.GlobalSecondaryIndexes {
		fmt.Println("global index:", index.Name, keyString(index.KeySchema), strings.ToLower(index.Projection.Type))
	}
	for _, index := range snapshot.LocalSecondaryIndexes {
		fmt.Println("local index:", index.Name, keyString(index.KeySchema), strings.ToLower(index.Projection.Type))
	}
	if snapshot.StreamEnabled {
		fmt.Println("stream:", strings.ToLower(snapshot.StreamViewType), snapshot.StreamArn)
	}
	fmt.Println("items:", humanize.Comma(snapshot.ItemCount))
	fmt.Println("size:", humanize.Bytes(uint64(snapshot.SizeBytes)))
	fmt.Println("created:", humanize.Time(snapshot.Created))
}
