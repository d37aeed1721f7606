package lib

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"gopkg.in/yaml.v3"
)

const (
	DynamoDBDeletionPolicyDelete = "delete"
	DynamoDBDeletionPolicyRetain = "retain"

	RegionPolicyStrict     = "strict"
	RegionPolicyPermissive = "permissive"

	dynamoDBDefaultStreamViewType = string(ddbtypes.StreamViewTypeNewImage)
	dynamoDBMaxNameLength         = 255
	dynamoDBNameSuffixLength      = 12
)

var dynamoDBNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

type DynamoDBAttr struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

type DynamoDBKey struct {
	Name    string `json:"name"    yaml:"name"`
	KeyType string `json:"keyType" yaml:"keyType"`
}

type DynamoDBProjection struct {
	Type             string   `json:"type,omitempty"             yaml:"type,omitempty"`
	NonKeyAttributes []string `json:"nonKeyAttributes,omitempty" yaml:"nonKeyAttributes,omitempty"`
}

type DynamoDBIndex struct {
	Name       string             `json:"name"       yaml:"name"`
	KeySchema  []DynamoDBKey      `json:"keySchema"  yaml:"keySchema"`
	Projection DynamoDBProjection `json:"projection" yaml:"projection,omitempty"`
}

type DynamoDBTimeToLive struct {
	AttributeName string `json:"attributeName" yaml:"attributeName"`
	Enabled       bool   `json:"enabled"       yaml:"enabled"`
}

type DynamoDBConfig struct {
	Name                   string              `json:"name,omitempty"                   yaml:"name,omitempty"`
	Region                 string              `json:"region,omitempty"                 yaml:"region,omitempty"`
	AttributeDefinitions   []DynamoDBAttr      `json:"attributeDefinitions,omitempty"   yaml:"attributeDefinitions,omitempty"`
	KeySchema              []DynamoDBKey       `json:"keySchema,omitempty"              yaml:"keySchema,omitempty"`
	GlobalSecondaryIndexes []DynamoDBIndex     `json:"globalSecondaryIndexes,omitempty" yaml:"globalSecondaryIndexes,omitempty"`
	LocalSecondaryIndexes  []DynamoDBIndex     `json:"localSecondaryIndexes,omitempty"  yaml:"localSecondaryIndexes,omitempty"`
	Stream                 *bool               `json:"stream,omitempty"                 yaml:"stream,omitempty"`
	StreamViewType         string              `json:"streamViewType,omitempty"         yaml:"streamViewType,omitempty"`
	TimeToLive             *DynamoDBTimeToLive `json:"timeToLive,omitempty"             yaml:"timeToLive,omitempty"`
	DeletionPolicy         string              `json:"deletionPolicy,omitempty"         yaml:"deletionPolicy,omitempty"`
	Delete                 *bool               `json:"delete,omitempty"                 yaml:"delete,omitempty"` // legacy, false means retain
	RegionPolicy           string              `json:"regionPolicy,omitempty"           yaml:"regionPolicy,omitempty"`
}

func (c *DynamoDBConfig) StreamEnabled() bool {
	return c.Stream != nil && *c.Stream
}

func (c *DynamoDBConfig) Retain() bool {
	return c.DeletionPolicy == DynamoDBDeletionPolicyRetain
}

func (c *DynamoDBConfig) attrType(name string) (string, bool) {
	for _, attr := range c.AttributeDefinitions {
		if attr.Name == name {
			return attr.Type, true
		}
	}
	return "", false
}

func cloneKeys(keys []DynamoDBKey) []DynamoDBKey {
	if keys == nil {
		return nil
	}
	out := make([]DynamoDBKey, len(keys))
	for i, k := range keys {
		out[i] = DynamoDBKey{Name: k.Name, KeyType: strings.ToUpper(k.KeyType)}
	}
	return out
}

func cloneIndexes(indexes []DynamoDBIndex) []DynamoDBIndex {
	if indexes == nil {
		return nil
	}
	out := make([]DynamoDBIndex, len(indexes))
	for i, index := range indexes {
		projection := DynamoDBProjection{Type: strings.ToUpper(index.Projection.Type)}
		if projection.Type == "" {
			projection.Type = string(ddbtypes.ProjectionTypeAll)
		}
		if index.Projection.NonKeyAttributes != nil {
			projection.NonKeyAttributes = append([]string{}, index.Projection.NonKeyAttributes...)
		}
		out[i] = DynamoDBIndex{
			Name:       index.Name,
			KeySchema:  cloneKeys(index.KeySchema),
			Projection: projection,
		}
	}
	return out
}

// DynamoDBApplyDefaults returns a resolved copy of cfg. The input is not modified.
func DynamoDBApplyDefaults(cfg DynamoDBConfig) DynamoDBConfig {
	out := DynamoDBConfig{
		Name:                   cfg.Name,
		Region:                 cfg.Region,
		KeySchema:              cloneKeys(cfg.KeySchema),
		GlobalSecondaryIndexes: cloneIndexes(cfg.GlobalSecondaryIndexes),
		LocalSecondaryIndexes:  cloneIndexes(cfg.LocalSecondaryIndexes),
		StreamViewType:         strings.ToUpper(cfg.StreamViewType),
		DeletionPolicy:         strings.ToLower(cfg.DeletionPolicy),
		RegionPolicy:           strings.ToLower(cfg.RegionPolicy),
	}
	for _, attr := range cfg.AttributeDefinitions {
		out.AttributeDefinitions = append(out.AttributeDefinitions, DynamoDBAttr{Name: attr.Name, Type: strings.ToUpper(attr.Type)})
	}
	if out.Region == "" {
		out.Region = Region()
	}
	if len(out.KeySchema) == 0 && len(out.AttributeDefinitions) == 0 {
		out.AttributeDefinitions = []DynamoDBAttr{{Name: "id", Type: string(ddbtypes.ScalarAttributeTypeS)}}
		out.KeySchema = []DynamoDBKey{{Name: "id", KeyType: string(ddbtypes.KeyTypeHash)}}
	}
	stream := false
	switch {
	case cfg.Stream != nil:
		stream = *cfg.Stream
	case out.StreamViewType != "":
		stream = true
	}
	out.Stream = &stream
	if stream && out.StreamViewType == "" {
		out.StreamViewType = dynamoDBDefaultStreamViewType
	}
	if cfg.TimeToLive != nil {
		ttl := *cfg.TimeToLive
		out.TimeToLive = &ttl
	}
	if out.DeletionPolicy == "" {
		out.DeletionPolicy = DynamoDBDeletionPolicyDelete
		if cfg.Delete != nil && !*cfg.Delete {
			out.DeletionPolicy = DynamoDBDeletionPolicyRetain
		}
	}
	if out.RegionPolicy == "" {
		out.RegionPolicy = RegionPolicyStrict
	}
	return out
}

func validateKeySchema(owner string, keys []DynamoDBKey) error {
	if len(keys) == 0 || len(keys) > 2 {
		return validationErr("%s key schema needs a hash key and at most one range key, got %d keys", owner, len(keys))
	}
	if keys[0].KeyType != string(ddbtypes.KeyTypeHash) {
		return validationErr("%s key schema must start with a HASH key, got: %s %s", owner, keys[0].Name, keys[0].KeyType)
	}
	if len(keys) == 2 && keys[1].KeyType != string(ddbtypes.KeyTypeRange) {
		return validationErr("%s second key must be a RANGE key, got: %s %s", owner, keys[1].Name, keys[1].KeyType)
	}
	for _, key := range keys {
		if key.Name == "" {
			return validationErr("%s key schema has a key without a name", owner)
		}
	}
	return nil
}

func validateStreamViewType(viewType string) error {
	switch ddbtypes.StreamViewType(viewType) {
	case ddbtypes.StreamViewTypeNewImage,
		ddbtypes.StreamViewTypeOldImage,
		ddbtypes.StreamViewTypeNewAndOldImages,
		ddbtypes.StreamViewTypeKeysOnly:
		return nil
	}
	return validationErr("unknown stream view type: %q, expected one of NEW_IMAGE, OLD_IMAGE, NEW_AND_OLD_IMAGES, KEYS_ONLY", viewType)
}

// DynamoDBConfigValidate checks a config produced by DynamoDBApplyDefaults.
func DynamoDBConfigValidate(cfg DynamoDBConfig) error {
	if cfg.Name != "" {
		if !dynamoDBNameRegexp.MatchString(cfg.Name) {
			return validationErr("table name may only contain a-z A-Z 0-9 _ . -, got: %s", cfg.Name)
		}
		if len(cfg.Name)+1+dynamoDBNameSuffixLength > dynamoDBMaxNameLength {
			return validationErr("table name too long: %s", cfg.Name)
		}
	}
	if cfg.Region == "" {
		return validationErr("region cannot be empty")
	}
	seen := make(map[string]bool)
	for _, attr := range cfg.AttributeDefinitions {
		if attr.Name == "" {
			return validationErr("attribute definition without a name")
		}
		if seen[attr.Name] {
			return validationErr("duplicate attribute definition: %s", attr.Name)
		}
		seen[attr.Name] = true
		switch ddbtypes.ScalarAttributeType(attr.Type) {
		case ddbtypes.ScalarAttributeTypeS, ddbtypes.ScalarAttributeTypeN, ddbtypes.ScalarAttributeTypeB:
		default:
			return validationErr("attribute %s has unknown type: %q, expected S, N or B", attr.Name, attr.Type)
		}
	}
	err := validateKeySchema("table", cfg.KeySchema)
	if err != nil {
		return err
	}
	indexNames := make(map[string]bool)
	checkIndex := func(kind string, index DynamoDBIndex) error {
		if index.Name == "" {
			return validationErr("%s without a name", kind)
		}
		if indexNames[index.Name] {
			return validationErr("duplicate index name: %s", index.Name)
		}
		indexNames[index.Name] = true
		err := validateKeySchema(kind+" "+index.Name, index.KeySchema)
		if err != nil {
			return err
		}
		switch ddbtypes.ProjectionType(index.Projection.Type) {
		case ddbtypes.ProjectionTypeAll, ddbtypes.ProjectionTypeKeysOnly:
			if len(index.Projection.NonKeyAttributes) != 0 {
				return validationErr("%s %s: nonKeyAttributes require projection type INCLUDE", kind, index.Name)
			}
		case ddbtypes.ProjectionTypeInclude:
		default:
			return validationErr("%s %s has unknown projection type: %q", kind, index.Name, index.Projection.Type)
		}
		return nil
	}
	for _, index := range cfg.GlobalSecondaryIndexes {
		err := checkIndex("global secondary index", index)
		if err != nil {
			return err
		}
	}
	for _, index := range cfg.LocalSecondaryIndexes {
		err := checkIndex("local secondary index", index)
		if err != nil {
			return err
		}
		if index.KeySchema[0].Name != cfg.KeySchema[0].Name {
			return validationErr("local secondary index %s must share the table hash key %s", index.Name, cfg.KeySchema[0].Name)
		}
	}
	var keyed []DynamoDBKey
	keyed = append(keyed, cfg.KeySchema...)
	for _, index := range cfg.GlobalSecondaryIndexes {
		keyed = append(keyed, index.KeySchema...)
	}
	for _, index := range cfg.LocalSecondaryIndexes {
		keyed = append(keyed, index.KeySchema...)
	}
	used := make(map[string]bool)
	for _, key := range keyed {
		if !seen[key.Name] {
			return validationErr("key attribute %s has no attribute definition", key.Name)
		}
		used[key.Name] = true
	}
	for _, attr := range cfg.AttributeDefinitions {
		if !used[attr.Name] {
			return validationErr("attribute %s is not used by the key schema or any index", attr.Name)
		}
	}
	if cfg.StreamViewType != "" || cfg.StreamEnabled() {
		err := validateStreamViewType(cfg.StreamViewType)
		if err != nil {
			return err
		}
	}
	if cfg.TimeToLive != nil && cfg.TimeToLive.AttributeName == "" {
		return validationErr("timeToLive needs an attributeName")
	}
	if !Contains([]string{DynamoDBDeletionPolicyDelete, DynamoDBDeletionPolicyRetain}, cfg.DeletionPolicy) {
		return validationErr("unknown deletion policy: %q, expected delete or retain", cfg.DeletionPolicy)
	}
	if !Contains([]string{RegionPolicyStrict, RegionPolicyPermissive}, cfg.RegionPolicy) {
		return validationErr("unknown region policy: %q, expected strict or permissive", cfg.RegionPolicy)
	}
	return nil
}

var dynamoDBConfigKeys = []string{
	"name",
	"region",
	"attributeDefinitions",
	"keySchema",
	"globalSecondaryIndexes",
	"localSecondaryIndexes",
	"stream",
	"streamViewType",
	"timeToLive",
	"deletionPolicy",
	"delete",
	"regionPolicy",
}

func DynamoDBConfigParse(yamlPath string) (*DynamoDBConfig, error) {
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return DynamoDBConfigParseBytes(data)
}

func DynamoDBConfigParseBytes(data []byte) (*DynamoDBConfig, error) {
	resolved, err := resolveEnvVars(string(data))
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	data = []byte(resolved)
	val := make(map[string]interface{})
	err = yaml.Unmarshal(data, &val)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	for k, v := range val {
		if !Contains(dynamoDBConfigKeys, k) {
			err := fmt.Errorf("unknown dynamodb config key: %s: %v", k, v)
			Logger.Println("error:", err)
			return nil, err
		}
	}
	cfg := &DynamoDBConfig{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err = decoder.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		Logger.Println("error:", err)
		return nil, err
	}
	return cfg, nil
}
