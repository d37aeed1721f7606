package lib

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"
)

// DynamoDBState is what a deploy records for the next deploy or remove. The
// zero value means nothing is deployed.
type DynamoDBState struct {
	Name           string `json:"name,omitempty"           yaml:"name,omitempty"`
	NameInput      string `json:"nameInput,omitempty"      yaml:"nameInput,omitempty"`
	Arn            string `json:"arn,omitempty"            yaml:"arn,omitempty"`
	Region         string `json:"region,omitempty"         yaml:"region,omitempty"`
	StreamArn      string `json:"streamArn,omitempty"      yaml:"streamArn,omitempty"`
	StreamViewType string `json:"streamViewType,omitempty" yaml:"streamViewType,omitempty"`
	DeletionPolicy string `json:"deletionPolicy,omitempty" yaml:"deletionPolicy,omitempty"`
}

func (s DynamoDBState) Empty() bool {
	return s == DynamoDBState{}
}

type DynamoDBStateStore interface {
	Load(ctx context.Context) (DynamoDBState, error)
	Save(ctx context.Context, state DynamoDBState) error
}

// StateFile keeps state in a yaml file.
type StateFile struct {
	Path string
}

func (s *StateFile) Load(ctx context.Context) (DynamoDBState, error) {
	state := DynamoDBState{}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		Logger.Println("error:", err)
		return state, err
	}
	err = yaml.Unmarshal(data, &state)
	if err != nil {
		Logger.Println("error:", err)
		return state, err
	}
	return state, nil
}

func (s *StateFile) Save(ctx context.Context, state DynamoDBState) error {
	if state.Empty() {
		err := os.Remove(s.Path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			Logger.Println("error:", err)
			return err
		}
		return nil
	}
	data, err := yaml.Marshal(state)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	tmp := s.Path + ".tmp"
	err = os.WriteFile(tmp, data, 0o644)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	err = os.Rename(tmp, s.Path)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	return nil
}

var dynamoDBStateBucket = []byte("dynamodb")

// StateBolt keeps the state of many instances in one bolt database, one key per instance.
type StateBolt struct {
	Path     string
	Instance string
}

func (s *StateBolt) open() (*bbolt.DB, error) {
	db, err := bbolt.Open(s.Path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return db, nil
}

func (s *StateBolt) Load(ctx context.Context) (DynamoDBState, error) {
	state := DynamoDBState{}
	db, err := s.open()
	if err != nil {
		return state, err
	}
	defer func() { _ = db.Close() }()
	err = db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(dynamoDBStateBucket)
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(s.Instance))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		Logger.Println("error:", err)
		return DynamoDBState{}, err
	}
	return state, nil
}

func (s *StateBolt) Save(ctx context.Context, state DynamoDBState) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	err = db.Update(func(tx *bbolt.Tx) error {
		if state.Empty() {
			bucket := tx.Bucket(dynamoDBStateBucket)
			if bucket == nil {
				return nil
			}
			return bucket.Delete([]byte(s.Instance))
		}
		bucket, err := tx.CreateBucketIfNotExists(dynamoDBStateBucket)
		if err != nil {
			return err
		}
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(s.Instance), data)
	})
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	return nil
}

// DynamoDBStateStoreOpen returns a bolt store for .db and .bolt paths and a
// yaml file store otherwise.
func DynamoDBStateStoreOpen(path, instance string) DynamoDBStateStore {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".bolt":
		if instance == "" {
			instance = "default"
		}
		return &StateBolt{Path: path, Instance: instance}
	default:
		return &StateFile{Path: path}
	}
}
