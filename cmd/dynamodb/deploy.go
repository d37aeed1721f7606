package cliaws

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/nathants/libddb/lib"
)

func init() {
	lib.Commands["dynamodb-deploy"] = dynamodbDeploy
	lib.Args["dynamodb-deploy"] = dynamodbDeployArgs{}
}

type dynamodbDeployArgs struct {
	State    string   `arg:"positional,required" help:"state file, a .db or .bolt path uses a bolt database"`
	Name     string   `arg:"positional" help:"table name, a unique suffix is appended"`
	Attrs    []string `arg:"positional"`
	Config   string   `arg:"-c,--config" help:"yaml table config, instead of NAME and ATTRS"`
	Instance string   `arg:"-i,--instance" default:"default" help:"state key within a bolt database"`
	Preview  bool     `arg:"-p,--preview"`
}

func (dynamodbDeployArgs) Description() string {
	return `
deploy a dynamodb table, creating, updating or replacing it to match

example:
 - libddb dynamodb-deploy state.yaml users userid:s:hash date:n:range stream=new_image ttl=expires
 - libddb dynamodb-deploy state.db --instance users --config users.yaml

required attrs:
 - NAME:ATTR_TYPE:KEY_TYPE

optional attrs:
 - Table.Region=VALUE                   shortcut: region=VALUE
 - Table.DeletionPolicy=delete|retain   shortcut: deletion-policy=VALUE
 - Table.RegionPolicy=strict|permissive shortcut: region-policy=VALUE

 - StreamSpecification.StreamViewType=VALUE shortcut: stream=VALUE
 - StreamSpecification.StreamEnabled=BOOL

 - TimeToLiveSpecification.AttributeName=VALUE shortcut: ttl=VALUE
 - TimeToLiveSpecification.Enabled=BOOL

 - LocalSecondaryIndexes.INTEGER.IndexName=VALUE
 - LocalSecondaryIndexes.INTEGER.Key.INTEGER=NAME:ATTR_TYPE:KEY_TYPE
 - LocalSecondaryIndexes.INTEGER.Projection.ProjectionType=VALUE
 - LocalSecondaryIndexes.INTEGER.Projection.NonKeyAttributes.INTEGER=VALUE

 - GlobalSecondaryIndexes.INTEGER.IndexName=VALUE
 - GlobalSecondaryIndexes.INTEGER.Key.INTEGER=NAME:ATTR_TYPE:KEY_TYPE
 - GlobalSecondaryIndexes.INTEGER.Projection.ProjectionType=VALUE
 - GlobalSecondaryIndexes.INTEGER.Projection.NonKeyAttributes.INTEGER=VALUE
`
}

func dynamodbDeploy() {
	var args dynamodbDeployArgs
	arg.MustParse(&args)
	ctx := context.Background()
	var cfg *lib.DynamoDBConfig
	var err error
	if args.Config != "" {
		if args.Name != "" || len(args.Attrs) != 0 {
			lib.Logger.Fatal("error: use either --config or NAME and ATTRS")
		}
		cfg, err = lib.DynamoDBConfigParse(args.Config)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
	} else {
		var keys []string
		var attrs []string
		for _, param := range args.Attrs {
			if strings.Contains(param, "=") {
				attrs = append(attrs, param)
			} else {
				keys = append(keys, param)
			}
		}
		cfg, err = lib.DynamoDBConfigFromArgs(args.Name, keys, attrs)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
	}
	component := lib.NewDynamoDBComponent(lib.DynamoDBStateStoreOpen(args.State, args.Instance))
	out, err := component.Deploy(ctx, *cfg, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	fmt.Println(lib.Pformat(out))
}
