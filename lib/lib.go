package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/avast/retry-go"
)

type ArgsStruct interface {
	Description() string
}

var Commands = make(map[string]func())

var Args = make(map[string]ArgsStruct)

func Contains(parts []string, part string) bool {
	for _, p := range parts {
		if p == part {
			return true
		}
	}
	return false
}

func SplitOnce(s string, sep string) (head, tail string, err error) {
	parts := strings.SplitN(s, sep, 2)
	if len(parts) == 2 {
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("cannot split once on %q: %s", sep, s)
}

func SplitTwice(s string, sep string) (head, mid, tail string, err error) {
	parts := strings.SplitN(s, sep, 3)
	if len(parts) == 3 {
		return parts[0], parts[1], parts[2], nil
	}
	return "", "", "", fmt.Errorf("cannot split twice on %q: %s", sep, s)
}

func PreviewString(preview bool) string {
	if !preview {
		return ""
	}
	return "preview: "
}

func Pformat(i interface{}) string {
	val, err := json.MarshalIndent(i, "", "    ")
	if err != nil {
		panic(err)
	}
	return string(val)
}

var envVarRegexp = regexp.MustCompile(`(\$\{[^\}]+})`)

func resolveEnvVars(s string) (string, error) {
	for _, variable := range envVarRegexp.FindAllString(s, -1) {
		variableName := variable[2 : len(variable)-1]
		variableValue := os.Getenv(variableName)
		if variableValue == "" {
			err := fmt.Errorf("missing environment variable: %s", variableName)
			Logger.Println("error:", err)
			return "", err
		}
		s = strings.Replace(s, variable, variableValue, 1)
	}
	return s, nil
}

// RetryFixed calls fn up to attempts times, sleeping delay on clk between
// attempts. Errors wrapped with retry.Unrecoverable stop immediately.
func RetryFixed(ctx context.Context, clk clock.Clock, attempts int, delay time.Duration, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.LastErrorOnly(true),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			if int(n) < attempts-1 {
				Logger.Printf("retry %d/%d in %s: %s\n", n+1, attempts-1, delay, err)
				clk.Sleep(delay)
			}
		}),
	)
}
