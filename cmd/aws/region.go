package cliaws

import (
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/nathants/libddb/lib"
)

func init() {
	lib.Commands["aws-region"] = region
	lib.Args["aws-region"] = regionArgs{}
}

type regionArgs struct {
}

func (regionArgs) Description() string {
	return "\ncurrent region id, from AWS_REGION or AWS_DEFAULT_REGION\n"
}

func region() {
	var args regionArgs
	arg.MustParse(&args)
	fmt.Println(lib.Region())
}
