package lib

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBIndexPlan is the global secondary index change for one UpdateTable
// call, which allows at most one create and one delete.
type DynamoDBIndexPlan struct {
	Create   *DynamoDBIndex `json:"create,omitempty"`
	Delete   string         `json:"delete,omitempty"`
	Deferred []string       `json:"deferred,omitempty"`
}

func (p DynamoDBIndexPlan) Empty() bool {
	return p.Create == nil && p.Delete == ""
}

func (p DynamoDBIndexPlan) Updates() []ddbtypes.GlobalSecondaryIndexUpdate {
	var updates []ddbtypes.GlobalSecondaryIndexUpdate
	if p.Create != nil {
		updates = append(updates, ddbtypes.GlobalSecondaryIndexUpdate{
			Create: &ddbtypes.CreateGlobalSecondaryIndexAction{
				IndexName:  aws.String(p.Create.Name),
				KeySchema:  toDynamoDBKeys(p.Create.KeySchema),
				Projection: toDynamoDBProjection(p.Create.Projection),
			},
		})
	}
	if p.Delete != "" {
		updates = append(updates, ddbtypes.GlobalSecondaryIndexUpdate{
			Delete: &ddbtypes.DeleteGlobalSecondaryIndexAction{
				IndexName: aws.String(p.Delete),
			},
		})
	}
	return updates
}

func dynamoDBIndexNames(indexes []DynamoDBIndex) map[string]bool {
	names := make(map[string]bool)
	for _, index := range indexes {
		names[index.Name] = true
	}
	return names
}

// DynamoDBPlanIndexUpdate picks the first index to create and the first index
// to delete, in input order. Remaining candidates are returned as deferred and
// are picked up by the next deploy.
func DynamoDBPlanIndexUpdate(prev, desired []DynamoDBIndex) DynamoDBIndexPlan {
	plan := DynamoDBIndexPlan{}
	prevNames := dynamoDBIndexNames(prev)
	desiredNames := dynamoDBIndexNames(desired)
	for _, index := range desired {
		if prevNames[index.Name] {
			continue
		}
		if plan.Create == nil {
			index := index
			plan.Create = &index
		} else {
			plan.Deferred = append(plan.Deferred, index.Name)
		}
	}
	for _, index := range prev {
		if desiredNames[index.Name] {
			continue
		}
		if plan.Delete == "" {
			plan.Delete = index.Name
		} else {
			plan.Deferred = append(plan.Deferred, index.Name)
		}
	}
	for _, name := range plan.Deferred {
		Logger.Println("index change deferred to the next deploy, only one create and one delete are allowed per update:", name)
	}
	return plan
}

// dynamoDBUpdateAttrs returns the attribute definitions for the key attributes
// of the table, its local indexes, and the global indexes that remain after plan.
func dynamoDBUpdateAttrs(cfg DynamoDBConfig, prev []DynamoDBIndex, plan DynamoDBIndexPlan) []DynamoDBAttr {
	var keys []DynamoDBKey
	keys = append(keys, cfg.KeySchema...)
	for _, index := range cfg.LocalSecondaryIndexes {
		keys = append(keys, index.KeySchema...)
	}
	desiredNames := dynamoDBIndexNames(cfg.GlobalSecondaryIndexes)
	for _, index := range prev {
		if index.Name != plan.Delete && desiredNames[index.Name] {
			keys = append(keys, index.KeySchema...)
		}
	}
	if plan.Create != nil {
		keys = append(keys, plan.Create.KeySchema...)
	}
	var attrs []DynamoDBAttr
	seen := make(map[string]bool)
	for _, key := range keys {
		if seen[key.Name] {
			continue
		}
		seen[key.Name] = true
		attrType, ok := cfg.attrType(key.Name)
		if !ok {
			continue
		}
		attrs = append(attrs, DynamoDBAttr{Name: key.Name, Type: attrType})
	}
	return sortedAttrs(attrs)
}
