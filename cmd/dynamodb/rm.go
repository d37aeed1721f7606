package cliaws

import (
	"context"

	"github.com/alexflint/go-arg"
	"github.com/nathants/libddb/lib"
)

func init() {
	lib.Commands["dynamodb-rm"] = dynamodbRm
	lib.Args["dynamodb-rm"] = dynamodbRmArgs{}
}

type dynamodbRmArgs struct {
	Name    string `arg:"positional,required"`
	Region  string `arg:"-r,--region" help:"defaults to AWS_REGION"`
	Preview bool   `arg:"-p,--preview"`
}

func (dynamodbRmArgs) Description() string {
	return "\ndelete a dynamodb table by name without touching any state file\n"
}

func dynamodbRm() {
	var args dynamodbRmArgs
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
	err = lib.DynamoDBDeleteTable(ctx, client, args.Name, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
}
