package cliaws

import (
	"context"
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/nathants/libddb/lib"
)

func init() {
	lib.Commands["dynamodb-state"] = dynamodbState
	lib.Args["dynamodb-state"] = dynamodbStateArgs{}
}

type dynamodbStateArgs struct {
	State    string `arg:"positional,required" help:"state file, a .db or .bolt path uses a bolt database"`
	Instance string `arg:"-i,--instance" default:"default" help:"state key within a bolt database"`
}

func (dynamodbStateArgs) Description() string {
	return "\nprint the recorded state of a deployed dynamodb table\n"
}

func dynamodbState() {
	var args dynamodbStateArgs
	arg.MustParse(&args)
	ctx := context.Background()
	state, err := lib.DynamoDBStateStoreOpen(args.State, args.Instance).Load(ctx)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	fmt.Println(lib.Pformat(state))
}
