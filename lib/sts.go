package lib

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sts"
)

var stsClient *sts.Client
var stsClientLock sync.Mutex

func STSClient() *sts.Client {
	stsClientLock.Lock()
	defer stsClientLock.Unlock()
	if stsClient == nil {
		stsClient = sts.NewFromConfig(*Session())
	}
	return stsClient
}

var stsAccount *string
var stsAccountLock sync.Mutex

func StsAccount(ctx context.Context) (string, error) {
	stsAccountLock.Lock()
	defer stsAccountLock.Unlock()
	if stsAccount == nil {
		if doDebug {
			d := &Debug{start: time.Now(), name: "StsAccount"}
			d.Start()
			defer d.End()
		}
		out, err := STSClient().GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			Logger.Println("error:", err)
			return "", err
		}
		stsAccount = out.Account
	}
	return *stsAccount, nil
}
