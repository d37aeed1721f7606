package lib

import (
	"context"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const DefaultRegion = "us-east-1"

var sess *aws.Config
var sessLock sync.Mutex
var sessRegional = make(map[string]*aws.Config)

func Session() *aws.Config {
	sessLock.Lock()
	defer sessLock.Unlock()
	if sess == nil {
		cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRetryMaxAttempts(5))
		if err != nil {
			panic(err)
		}
		sess = &cfg
	}
	return sess
}

func SessionRegion(region string) (*aws.Config, error) {
	sessLock.Lock()
	defer sessLock.Unlock()
	cfg, ok := sessRegional[region]
	if !ok {
		c, err := config.LoadDefaultConfig(
			context.Background(),
			config.WithRegion(region),
			config.WithRetryMaxAttempts(5),
		)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		cfg = &c
		sessRegional[region] = cfg
	}
	return cfg, nil
}

// SessionExplicit builds an uncached config from a static credential bag.
func SessionExplicit(accessKeyID, accessKeySecret, sessionToken, region string) (*aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithRegion(region),
		config.WithRetryMaxAttempts(5),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, sessionToken)),
	)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return &cfg, nil
}

// Region resolves the region for new tables when the config names none.
func Region() string {
	for _, k := range []string{"AWS_REGION", "AWS_DEFAULT_REGION"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return DefaultRegion
}
