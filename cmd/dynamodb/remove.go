package cliaws

import (
	"context"
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/nathants/libddb/lib"
)

func init() {
	lib.Commands["dynamodb-remove"] = dynamodbRemove
	lib.Args["dynamodb-remove"] = dynamodbRemoveArgs{}
}

type dynamodbRemoveArgs struct {
	State    string `arg:"positional,required" help:"state file, a .db or .bolt path uses a bolt database"`
	Instance string `arg:"-i,--instance" default:"default" help:"state key within a bolt database"`
	Preview  bool   `arg:"-p,--preview"`
}

func (dynamodbRemoveArgs) Description() string {
	return "\nremove a deployed dynamodb table, a table with deletion policy retain is kept\n"
}

func dynamodbRemove() {
	var args dynamodbRemoveArgs
	arg.MustParse(&args)
	ctx := context.Background()
	component := lib.NewDynamoDBComponent(lib.DynamoDBStateStoreOpen(args.State, args.Instance))
	out, err := component.Remove(ctx, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	fmt.Println(lib.Pformat(out))
}
