package lib

import (
	"context"
	"fmt"
	"strings"

	"code.cloudfoundry.org/clock"
)

// DynamoDBIndexOutput describes a configured index. Pending indexes are
// created by a later deploy.
type DynamoDBIndexOutput struct {
	Name    string `json:"name"`
	Arn     string `json:"arn"`
	Pending bool   `json:"pending,omitempty"`
}

type DynamoDBOutputs struct {
	Name      string                         `json:"name,omitempty"`
	Arn       string                         `json:"arn,omitempty"`
	Region    string                         `json:"region,omitempty"`
	StreamArn string                         `json:"streamArn,omitempty"`
	Indexes   map[string]DynamoDBIndexOutput `json:"indexes,omitempty"`
}

// DynamoDBComponent deploys and removes one table, keeping what it deployed in Store.
// Callers must not run two deploys or removes against the same Store at once.
type DynamoDBComponent struct {
	Store      DynamoDBStateStore
	Client     func(region string) (DynamoDBAPI, error)
	Clock      clock.Clock
	NameSuffix func() string
}

func NewDynamoDBComponent(store DynamoDBStateStore) *DynamoDBComponent {
	return &DynamoDBComponent{
		Store:      store,
		Clock:      clock.NewClock(),
		NameSuffix: DynamoDBNameSuffix,
	}
}

func (c *DynamoDBComponent) client(region string) (DynamoDBAPI, error) {
	if c.Client == nil {
		client, err := DynamoDBClientRegion(region)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	api, err := c.Client(region)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return api, nil
}

func (c *DynamoDBComponent) clk() clock.Clock {
	if c.Clock == nil {
		return clock.NewClock()
	}
	return c.Clock
}

func dynamoDBIndexOutputs(arn string, cfg DynamoDBConfig, deferred []string) map[string]DynamoDBIndexOutput {
	if arn == "" {
		return nil
	}
	var indexes []DynamoDBIndex
	indexes = append(indexes, cfg.GlobalSecondaryIndexes...)
	indexes = append(indexes, cfg.LocalSecondaryIndexes...)
	if len(indexes) == 0 {
		return nil
	}
	out := make(map[string]DynamoDBIndexOutput)
	for _, index := range indexes {
		out[index.Name] = DynamoDBIndexOutput{
			Name:    index.Name,
			Arn:     arn + "/index/" + index.Name,
			Pending: Contains(deferred, index.Name),
		}
	}
	return out
}

// create records the new table in Store as soon as it exists, so a deploy
// that fails afterwards is retried against the same table.
func (c *DynamoDBComponent) create(ctx context.Context, api DynamoDBAPI, name, nameInput string, cfg DynamoDBConfig, preview bool) (string, string, error) {
	Logger.Println(PreviewString(preview)+"creating table:", name)
	if preview {
		return "", "", nil
	}
	arn, streamArn, err := DynamoDBCreateTable(ctx, api, name, cfg)
	if err != nil {
		return "", "", err
	}
	err = c.Store.Save(ctx, DynamoDBState{
		Name:           name,
		NameInput:      nameInput,
		Arn:            arn,
		Region:         cfg.Region,
		DeletionPolicy: cfg.DeletionPolicy,
	})
	if err != nil {
		return "", "", err
	}
	if cfg.StreamEnabled() && streamArn == "" {
		streamArn, err = DynamoDBGetStreamArn(ctx, api, name, c.clk())
		if err != nil {
			return "", "", err
		}
	}
	return arn, streamArn, nil
}

// update applies the changes between prev and cfg that UpdateTable can make in
// one call, returning the arn, stream arn and index names left for a later deploy.
func (c *DynamoDBComponent) update(ctx context.Context, api DynamoDBAPI, prev *DynamoDBSnapshot, cfg DynamoDBConfig, preview bool) (string, string, []string, error) {
	arn := prev.Arn
	streamArn := ""
	if prev.StreamEnabled {
		streamArn = prev.StreamArn
	}
	changelog, err := DynamoDBChangelog(prev, cfg)
	if err != nil {
		return "", "", nil, err
	}
	if len(changelog) == 0 {
		Logger.Println("table unchanged:", prev.Name)
		streamArn, err = c.missingStreamArn(ctx, api, prev.Name, cfg, streamArn, preview)
		if err != nil {
			return "", "", nil, err
		}
		return arn, streamArn, nil, nil
	}
	paths := append(dynamoDBAttrTypeChanges(prev, cfg), dynamoDBReplaceRequired(changelog)...)
	if len(paths) > 0 {
		err := fmt.Errorf("%w: %s: %s", ErrImmutableChange, prev.Name, strings.Join(paths, ", "))
		Logger.Println("error:", err)
		return "", "", nil, err
	}
	indexPlan := DynamoDBPlanIndexUpdate(prev.GlobalSecondaryIndexes, cfg.GlobalSecondaryIndexes)
	streamPlan, err := DynamoDBPlanStreamUpdate(prev, cfg.StreamEnabled(), cfg.StreamViewType)
	if err != nil {
		return "", "", nil, err
	}
	update := DynamoDBUpdate{
		AttributeDefinitions: dynamoDBUpdateAttrs(cfg, prev.GlobalSecondaryIndexes, indexPlan),
		Indexes:              indexPlan,
		Stream:               streamPlan,
	}
	if update.Empty() {
		var changed []string
		for _, change := range changelog {
			changed = append(changed, strings.Join(change.Path, "."))
		}
		err := fmt.Errorf("%w: %s: %s", ErrImmutableChange, prev.Name, strings.Join(changed, ", "))
		Logger.Println("error:", err)
		return "", "", nil, err
	}
	Logger.Println(PreviewString(preview)+"updating table:", prev.Name)
	if indexPlan.Create != nil {
		Logger.Println(PreviewString(preview)+"creating index:", indexPlan.Create.Name)
	}
	if indexPlan.Delete != "" {
		Logger.Println(PreviewString(preview)+"deleting index:", indexPlan.Delete)
	}
	if streamPlan.Action != DynamoDBStreamNoop {
		Logger.Println(PreviewString(preview)+streamPlan.Action+" stream:", prev.Name, streamPlan.ViewType)
	}
	if preview {
		if streamPlan.Action == DynamoDBStreamDisable {
			streamArn = ""
		}
		return arn, streamArn, indexPlan.Deferred, nil
	}
	updatedArn, updatedStreamArn, err := DynamoDBUpdateTable(ctx, api, prev.Name, update)
	if err != nil {
		return "", "", nil, err
	}
	if updatedArn != "" {
		arn = updatedArn
	}
	switch streamPlan.Action {
	case DynamoDBStreamEnable:
		streamArn = updatedStreamArn
		if streamArn == "" || streamArn == prev.StreamArn {
			streamArn, err = DynamoDBGetStreamArn(ctx, api, prev.Name, c.clk())
			if err != nil {
				return "", "", nil, err
			}
		}
	case DynamoDBStreamDisable:
		streamArn = ""
	default:
		streamArn, err = c.missingStreamArn(ctx, api, prev.Name, cfg, streamArn, preview)
		if err != nil {
			return "", "", nil, err
		}
	}
	return arn, streamArn, indexPlan.Deferred, nil
}

// missingStreamArn polls for the stream arn of an enabled stream that an
// earlier deploy left without one.
func (c *DynamoDBComponent) missingStreamArn(ctx context.Context, api DynamoDBAPI, name string, cfg DynamoDBConfig, streamArn string, preview bool) (string, error) {
	if preview || streamArn != "" || !cfg.StreamEnabled() {
		return streamArn, nil
	}
	return DynamoDBGetStreamArn(ctx, api, name, c.clk())
}

// Deploy creates, updates or replaces the table so it matches input.
func (c *DynamoDBComponent) Deploy(ctx context.Context, input DynamoDBConfig, preview bool) (*DynamoDBOutputs, error) {
	cfg := DynamoDBApplyDefaults(input)
	err := DynamoDBConfigValidate(cfg)
	if err != nil {
		return nil, err
	}
	state, err := c.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	name, nameInput := DynamoDBResolveName(state, cfg.Name, c.NameSuffix)
	cfg.Name = name
	regionMoved := state.Name != "" && state.Region != "" && state.Region != cfg.Region
	var old *DynamoDBSnapshot
	var oldAPI DynamoDBAPI
	oldRegion := state.Region
	if oldRegion == "" {
		oldRegion = cfg.Region
	}
	if state.Name != "" && (state.Name != name || regionMoved) {
		oldAPI, err = c.client(oldRegion)
		if err != nil {
			return nil, err
		}
		old, err = DynamoDBDescribe(ctx, oldAPI, state.Name)
		if err != nil {
			return nil, err
		}
	}
	if regionMoved && old == nil {
		Logger.Println("table no longer exists in its recorded region:", state.Name, state.Region)
	}
	if old != nil && regionMoved && cfg.RegionPolicy == RegionPolicyStrict {
		err := fmt.Errorf("%w: %s is in %s, not %s", ErrRegionImmutable, state.Name, state.Region, cfg.Region)
		Logger.Println("error:", err)
		return nil, err
	}
	api, err := c.client(cfg.Region)
	if err != nil {
		return nil, err
	}
	Logger.Println(PreviewString(preview)+"deploying table:", name, cfg.Region)
	var arn, streamArn string
	var deferred []string
	if old != nil {
		if cfg.Retain() {
			err := fmt.Errorf("%w: replacing %s in %s with %s in %s requires deleting it, set deletionPolicy to delete to allow this", ErrDestructiveActionBlocked, state.Name, oldRegion, name, cfg.Region)
			Logger.Println("error:", err)
			return nil, err
		}
		Logger.Println(PreviewString(preview)+"replacing table:", state.Name, oldRegion, "->", name, cfg.Region)
		err = DynamoDBDeleteTable(ctx, oldAPI, state.Name, preview)
		if err != nil {
			return nil, err
		}
		if !preview {
			err = c.Store.Save(ctx, DynamoDBState{})
			if err != nil {
				return nil, err
			}
		}
		arn, streamArn, err = c.create(ctx, api, name, nameInput, cfg, preview)
		if err != nil {
			err = fmt.Errorf("table %s was deleted but replacing it with %s failed, recover manually or by deploying again: %w", state.Name, name, err)
			Logger.Println("error:", err)
			return nil, err
		}
	} else {
		prev, err := DynamoDBDescribe(ctx, api, name)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			arn, streamArn, err = c.create(ctx, api, name, nameInput, cfg, preview)
		} else {
			arn, streamArn, deferred, err = c.update(ctx, api, prev, cfg, preview)
		}
		if err != nil {
			return nil, err
		}
	}
	err = DynamoDBSyncTimeToLive(ctx, api, name, cfg.TimeToLive, preview)
	if err != nil {
		return nil, err
	}
	outputs := &DynamoDBOutputs{
		Name:      name,
		Arn:       arn,
		Region:    cfg.Region,
		StreamArn: streamArn,
		Indexes:   dynamoDBIndexOutputs(arn, cfg, deferred),
	}
	if preview {
		return outputs, nil
	}
	newState := DynamoDBState{
		Name:           name,
		NameInput:      nameInput,
		Arn:            arn,
		Region:         cfg.Region,
		StreamArn:      streamArn,
		DeletionPolicy: cfg.DeletionPolicy,
	}
	if cfg.StreamEnabled() {
		newState.StreamViewType = cfg.StreamViewType
	}
	err = c.Store.Save(ctx, newState)
	if err != nil {
		return nil, err
	}
	return outputs, nil
}

// Remove deletes the deployed table unless its deletion policy is retain, and
// clears the stored state either way.
func (c *DynamoDBComponent) Remove(ctx context.Context, preview bool) (*DynamoDBOutputs, error) {
	state, err := c.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state.Name == "" {
		Logger.Println("nothing to remove")
		return &DynamoDBOutputs{}, nil
	}
	if state.DeletionPolicy == DynamoDBDeletionPolicyRetain {
		Logger.Println(PreviewString(preview)+"retaining table:", state.Name)
		if !preview {
			err := c.Store.Save(ctx, DynamoDBState{})
			if err != nil {
				return nil, err
			}
		}
		return &DynamoDBOutputs{}, nil
	}
	region := state.Region
	if region == "" {
		region = Region()
	}
	api, err := c.client(region)
	if err != nil {
		return nil, err
	}
	Logger.Println(PreviewString(preview)+"removing table:", state.Name, region)
	err = DynamoDBDeleteTable(ctx, api, state.Name, preview)
	if err != nil {
		return nil, err
	}
	if !preview {
		err := c.Store.Save(ctx, DynamoDBState{})
		if err != nil {
			return nil, err
		}
	}
	return &DynamoDBOutputs{
		Name:      state.Name,
		Arn:       state.Arn,
		Region:    region,
		StreamArn: state.StreamArn,
	}, nil
}
