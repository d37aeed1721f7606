package lib

import (
	"fmt"
	"strconv"
	"strings"
)

func dynamoDBAttrShortcut(s string) string {
	s2, ok := map[string]string{
		"stream":          "StreamSpecification.StreamViewType",
		"ttl":             "TimeToLiveSpecification.AttributeName",
		"region":          "Table.Region",
		"deletion-policy": "Table.DeletionPolicy",
		"region-policy":   "Table.RegionPolicy",
	}[s]
	if ok {
		return s2
	}
	return s
}

// parseDynamoDBKey unpacks keys like "name:s:hash" and "date:n:range".
func parseDynamoDBKey(key string) (DynamoDBAttr, DynamoDBKey, error) {
	attrName, attrType, keyType, err := SplitTwice(key, ":")
	if err != nil {
		Logger.Println("error:", err)
		return DynamoDBAttr{}, DynamoDBKey{}, err
	}
	attr := DynamoDBAttr{Name: attrName, Type: strings.ToUpper(attrType)}
	return attr, DynamoDBKey{Name: attrName, KeyType: strings.ToUpper(keyType)}, nil
}

func (c *DynamoDBConfig) addAttr(attr DynamoDBAttr) error {
	existing, ok := c.attrType(attr.Name)
	if !ok {
		c.AttributeDefinitions = append(c.AttributeDefinitions, attr)
		return nil
	}
	if existing != attr.Type {
		err := fmt.Errorf("attribute %s defined with conflicting types: %s and %s", attr.Name, existing, attr.Type)
		Logger.Println("error:", err)
		return err
	}
	return nil
}

// parseDynamoDBIndexAttr handles the tail of an attr like
// "GlobalSecondaryIndexes.0.Key.1=date:n:range".
func (c *DynamoDBConfig) parseDynamoDBIndexAttr(indexes *[]DynamoDBIndex, line, tail, value string) error {
	head, tail, err := SplitOnce(tail, ".")
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	i, err := strconv.Atoi(head)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	switch len(*indexes) {
	case i:
		*indexes = append(*indexes, DynamoDBIndex{})
	case i + 1:
	default:
		err := fmt.Errorf("attrs with indices must be in ascending order: %s", line)
		Logger.Println("error:", err)
		return err
	}
	index := &(*indexes)[i]
	if tail == "IndexName" {
		index.Name = value
		return nil
	}
	head, tail, err = SplitOnce(tail, ".")
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	switch head {
	case "Key":
		j, err := strconv.Atoi(tail)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
		if len(index.KeySchema) != j {
			err := fmt.Errorf("attrs with indices must be in ascending order: %s", line)
			Logger.Println("error:", err)
			return err
		}
		attr, key, err := parseDynamoDBKey(value)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
		err = c.addAttr(attr)
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
		index.KeySchema = append(index.KeySchema, key)
	case "Projection":
		switch tail {
		case "ProjectionType":
			index.Projection.Type = strings.ToUpper(value)
		default:
			head, tail, err = SplitOnce(tail, ".")
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
			if head != "NonKeyAttributes" {
				err := fmt.Errorf("unknown attr: %s", line)
				Logger.Println("error:", err)
				return err
			}
			j, err := strconv.Atoi(tail)
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
			if len(index.Projection.NonKeyAttributes) != j {
				err := fmt.Errorf("attrs with indices must be in ascending order: %s", line)
				Logger.Println("error:", err)
				return err
			}
			index.Projection.NonKeyAttributes = append(index.Projection.NonKeyAttributes, value)
		}
	default:
		err := fmt.Errorf("unknown attr: %s", line)
		Logger.Println("error:", err)
		return err
	}
	return nil
}

// DynamoDBConfigFromArgs builds a config from command line shorthand, for example:
//
//	users userid:s:hash date:n:range stream=new_image ttl=expires
func DynamoDBConfigFromArgs(name string, keys []string, attrs []string) (*DynamoDBConfig, error) {
	cfg := &DynamoDBConfig{Name: name}
	for _, key := range keys {
		attr, k, err := parseDynamoDBKey(key)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		err = cfg.addAttr(attr)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		cfg.KeySchema = append(cfg.KeySchema, k)
	}
	for _, line := range attrs {
		attr, value, err := SplitOnce(line, "=")
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		attr = dynamoDBAttrShortcut(attr)
		head, tail, err := SplitOnce(attr, ".")
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		switch head {

		case "BillingMode", "ProvisionedThroughput":
			err := fmt.Errorf("billing mode is always PAY_PER_REQUEST: %s", line)
			Logger.Println("error:", err)
			return nil, err

		case "Table":
			switch tail {
			case "Region":
				cfg.Region = value
			case "DeletionPolicy":
				cfg.DeletionPolicy = strings.ToLower(value)
			case "RegionPolicy":
				cfg.RegionPolicy = strings.ToLower(value)
			default:
				err := fmt.Errorf("unknown attr: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}

		case "StreamSpecification":
			switch tail {
			case "StreamViewType":
				enabled := true
				cfg.Stream = &enabled
				cfg.StreamViewType = strings.ToUpper(value)
			case "StreamEnabled":
				enabled, err := strconv.ParseBool(value)
				if err != nil {
					Logger.Println("error:", err)
					return nil, err
				}
				cfg.Stream = &enabled
			default:
				err := fmt.Errorf("unknown attr: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}

		case "TimeToLiveSpecification":
			if cfg.TimeToLive == nil {
				cfg.TimeToLive = &DynamoDBTimeToLive{Enabled: true}
			}
			switch tail {
			case "AttributeName":
				cfg.TimeToLive.AttributeName = value
			case "Enabled":
				enabled, err := strconv.ParseBool(value)
				if err != nil {
					Logger.Println("error:", err)
					return nil, err
				}
				cfg.TimeToLive.Enabled = enabled
			default:
				err := fmt.Errorf("unknown attr: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}

		case "LocalSecondaryIndexes":
			err := cfg.parseDynamoDBIndexAttr(&cfg.LocalSecondaryIndexes, line, tail, value)
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}

		case "GlobalSecondaryIndexes":
			err := cfg.parseDynamoDBIndexAttr(&cfg.GlobalSecondaryIndexes, line, tail, value)
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}

		default:
			err := fmt.Errorf("unknown attr: %s", line)
			Logger.Println("error:", err)
			return nil, err
		}
	}
	return cfg, nil
}

// DynamoDBSnapshotArgs renders a remote table as the keys and attrs accepted
// by DynamoDBConfigFromArgs.
func DynamoDBSnapshotArgs(snapshot *DynamoDBSnapshot) ([]string, []string) {
	attrTypes := make(map[string]string)
	for _, attr := range snapshot.AttributeDefinitions {
		attrTypes[attr.Name] = attr.Type
	}
	keyArg := func(key DynamoDBKey) string {
		return strings.ToLower(fmt.Sprintf("%s:%s:%s", key.Name, attrTypes[key.Name], key.KeyType))
	}
	var keys []string
	for _, key := range snapshot.KeySchema {
		keys = append(keys, keyArg(key))
	}
	var attrs []string
	if snapshot.StreamEnabled {
		attrs = append(attrs, fmt.Sprintf("stream=%s", strings.ToLower(snapshot.StreamViewType)))
	}
	indexArgs := func(kind string, indexes []DynamoDBIndex) {
		for i, index := range indexes {
			attrs = append(attrs, fmt.Sprintf("%s.%d.IndexName=%s", kind, i, index.Name))
			for j, key := range index.KeySchema {
				attrs = append(attrs, fmt.Sprintf("%s.%d.Key.%d=%s", kind, i, j, keyArg(key)))
			}
			attrs = append(attrs, fmt.Sprintf("%s.%d.Projection.ProjectionType=%s", kind, i, strings.ToLower(index.Projection.Type)))
			for j, attr := range index.Projection.NonKeyAttributes {
				attrs = append(attrs, fmt.Sprintf("%s.%d.Projection.NonKeyAttributes.%d=%s", kind, i, j, attr))
			}
		}
	}
	indexArgs("LocalSecondaryIndexes", snapshot.LocalSecondaryIndexes)
	indexArgs("GlobalSecondaryIndexes", snapshot.GlobalSecondaryIndexes)
	return keys, attrs
}
