package lib

import (
	"context"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/avast/retry-go"
)

const (
	DynamoDBStreamNoop    = "noop"
	DynamoDBStreamEnable  = "enable"
	DynamoDBStreamDisable = "disable"

	dynamoDBStreamArnAttempts = 5
	dynamoDBStreamArnDelay    = 3 * time.Second
)

type DynamoDBStreamPlan struct {
	Action   string `json:"action"`
	ViewType string `json:"viewType,omitempty"`
}

// DynamoDBPlanStreamUpdate decides how to move the stream of prev, which may be
// nil, to the desired state. A stream that stays enabled keeps its view type.
func DynamoDBPlanStreamUpdate(prev *DynamoDBSnapshot, enabled bool, viewType string) (DynamoDBStreamPlan, error) {
	prevEnabled := prev != nil && prev.StreamEnabled
	switch {
	case !prevEnabled && !enabled:
		return DynamoDBStreamPlan{Action: DynamoDBStreamNoop}, nil
	case prevEnabled && enabled && prev.StreamViewType != viewType:
		err := fmt.Errorf("%w: %s -> %s", ErrViewTypeImmutable, prev.StreamViewType, viewType)
		Logger.Println("error:", err)
		return DynamoDBStreamPlan{}, err
	case prevEnabled && enabled:
		return DynamoDBStreamPlan{Action: DynamoDBStreamNoop}, nil
	case enabled:
		err := validateStreamViewType(viewType)
		if err != nil {
			return DynamoDBStreamPlan{}, err
		}
		return DynamoDBStreamPlan{Action: DynamoDBStreamEnable, ViewType: viewType}, nil
	default:
		return DynamoDBStreamPlan{Action: DynamoDBStreamDisable}, nil
	}
}

// DynamoDBGetStreamArn polls until the stream of an enabled table reports its
// arn. Describe errors end the poll immediately.
func DynamoDBGetStreamArn(ctx context.Context, api DynamoDBAPI, name string, clk clock.Clock) (string, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBGetStreamArn"}
		d.Start()
		defer d.End()
	}
	var streamArn string
	err := RetryFixed(ctx, clk, dynamoDBStreamArnAttempts, dynamoDBStreamArnDelay, func() error {
		snapshot, err := DynamoDBDescribe(ctx, api, name)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		if snapshot == nil || !snapshot.StreamEnabled || snapshot.StreamArn == "" {
			return fmt.Errorf("%w: %s", ErrStreamArnUnavailable, name)
		}
		streamArn = snapshot.StreamArn
		return nil
	})
	if err != nil {
		Logger.Println("error:", err)
		return "", err
	}
	return streamArn, nil
}
