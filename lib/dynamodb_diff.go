package lib

import (
	"sort"
	"strings"

	"github.com/r3labs/diff/v2"
)

// dynamoDBProjection holds the fields that decide whether a table needs an update.
type dynamoDBProjection struct {
	Name                   string
	AttributeDefinitions   []DynamoDBAttr
	KeySchema              []DynamoDBKey
	GlobalSecondaryIndexes []dynamoDBIndexProjection
	LocalSecondaryIndexes  []dynamoDBIndexProjection
	Stream                 bool
	StreamViewType         string
}

type dynamoDBIndexProjection struct {
	Name             string `diff:"Name,identifier"`
	KeySchema        []DynamoDBKey
	ProjectionType   string
	NonKeyAttributes []string
}

func projectDynamoDBIndexes(indexes []DynamoDBIndex) []dynamoDBIndexProjection {
	out := []dynamoDBIndexProjection{}
	for _, index := range indexes {
		nonKey := append([]string{}, index.Projection.NonKeyAttributes...)
		sort.Strings(nonKey)
		out = append(out, dynamoDBIndexProjection{
			Name:             index.Name,
			KeySchema:        append([]DynamoDBKey{}, index.KeySchema...),
			ProjectionType:   index.Projection.Type,
			NonKeyAttributes: nonKey,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func projectDynamoDB(name string, attrs []DynamoDBAttr, keys []DynamoDBKey, gsis, lsis []DynamoDBIndex, stream bool, viewType string) dynamoDBProjection {
	p := dynamoDBProjection{
		Name:                   name,
		AttributeDefinitions:   sortedAttrs(attrs),
		KeySchema:              append([]DynamoDBKey{}, keys...),
		GlobalSecondaryIndexes: projectDynamoDBIndexes(gsis),
		LocalSecondaryIndexes:  projectDynamoDBIndexes(lsis),
		Stream:                 stream,
	}
	if stream {
		p.StreamViewType = viewType
	}
	return p
}

func projectDynamoDBSnapshot(prev *DynamoDBSnapshot) dynamoDBProjection {
	return projectDynamoDB(prev.Name, prev.AttributeDefinitions, prev.KeySchema, prev.GlobalSecondaryIndexes, prev.LocalSecondaryIndexes, prev.StreamEnabled, prev.StreamViewType)
}

func projectDynamoDBConfig(desired DynamoDBConfig) dynamoDBProjection {
	return projectDynamoDB(desired.Name, desired.AttributeDefinitions, desired.KeySchema, desired.GlobalSecondaryIndexes, desired.LocalSecondaryIndexes, desired.StreamEnabled(), desired.StreamViewType)
}

// DynamoDBChangelog compares a remote table with a resolved config, where
// desired.Name is the resolved table name. Billing settings are never compared.
func DynamoDBChangelog(prev *DynamoDBSnapshot, desired DynamoDBConfig) (diff.Changelog, error) {
	changelog, err := diff.Diff(projectDynamoDBSnapshot(prev), projectDynamoDBConfig(desired), diff.DisableStructValues())
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return changelog, nil
}

func DynamoDBChanged(prev *DynamoDBSnapshot, desired DynamoDBConfig) (bool, error) {
	changelog, err := DynamoDBChangelog(prev, desired)
	if err != nil {
		Logger.Println("error:", err)
		return false, err
	}
	return len(changelog) > 0, nil
}

// dynamoDBReplaceRequired reports changes no UpdateTable call can apply.
func dynamoDBReplaceRequired(changelog diff.Changelog) []string {
	var paths []string
	for _, change := range changelog {
		if len(change.Path) == 0 {
			continue
		}
		switch change.Path[0] {
		case "KeySchema", "LocalSecondaryIndexes":
			paths = append(paths, strings.Join(change.Path, "."))
		case "GlobalSecondaryIndexes":
			// indexes are matched by name, so a path below the index name is
			// a change to an existing index rather than an add or remove
			if len(change.Path) > 2 {
				paths = append(paths, strings.Join(change.Path, "."))
			}
		}
	}
	return paths
}

// dynamoDBAttrTypeChanges lists attributes of prev whose type differs in desired.
func dynamoDBAttrTypeChanges(prev *DynamoDBSnapshot, desired DynamoDBConfig) []string {
	var paths []string
	for _, attr := range sortedAttrs(prev.AttributeDefinitions) {
		attrType, ok := desired.attrType(attr.Name)
		if ok && attrType != attr.Type {
			paths = append(paths, "AttributeDefinitions."+attr.Name+".Type")
		}
	}
	return paths
}
