package lib

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const dynamoDBTableExistsMaxWait = 5 * time.Minute

// DynamoDBSyncTimeToLive enables or disables ttl when it differs from desired.
// A nil desired leaves ttl untouched.
func DynamoDBSyncTimeToLive(ctx context.Context, api DynamoDBAPI, name string, desired *DynamoDBTimeToLive, preview bool) error {
	if desired == nil {
		return nil
	}
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBSyncTimeToLive"}
		d.Start()
		defer d.End()
	}
	out, err := api.DescribeTimeToLive(ctx, &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(name),
	})
	if err != nil {
		if preview && isDynamoDBNotFound(err) {
			Logger.Println(PreviewString(preview)+"updated ttl:", name, desired.AttributeName, desired.Enabled)
			return nil
		}
		Logger.Println("error:", err)
		return err
	}
	enabled := false
	attr := ""
	if out.TimeToLiveDescription != nil {
		attr = aws.ToString(out.TimeToLiveDescription.AttributeName)
		switch out.TimeToLiveDescription.TimeToLiveStatus {
		case ddbtypes.TimeToLiveStatusEnabled, ddbtypes.TimeToLiveStatusEnabling:
			enabled = true
		}
	}
	if enabled == desired.Enabled && (!enabled || attr == desired.AttributeName) {
		return nil
	}
	if !preview {
		err := dynamodb.NewTableExistsWaiter(api).Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(name),
		}, dynamoDBTableExistsMaxWait)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
		attributeName := desired.AttributeName
		if !desired.Enabled && attr != "" {
			attributeName = attr
		}
		_, err = api.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
			TableName: aws.String(name),
			TimeToLiveSpecification: &ddbtypes.TimeToLiveSpecification{
				AttributeName: aws.String(attributeName),
				Enabled:       aws.Bool(desired.Enabled),
			},
		})
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println(PreviewString(preview)+"updated ttl:", name, desired.AttributeName, desired.Enabled)
	return nil
}
