package devops

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// DeviceCredentials is the YAML document stored in the SSM parameter:
//
//	username: sync-service
//	password: secret
type DeviceCredentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ParameterReader is the subset of the SSM client used here.
type ParameterReader interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadDeviceCredentials reads the device API credentials from an encrypted SSM
// parameter using the default AWS configuration chain.
func LoadDeviceCredentials(ctx context.Context, paramName string) (*DeviceCredentials, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ReadDeviceCredentials(ctx, ssm.NewFromConfig(cfg), paramName)
}

func ReadDeviceCredentials(ctx context.Context, client ParameterReader, paramName string) (*DeviceCredentials, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get parameter %s: %w", paramName, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("parameter %s is empty", paramName)
	}

	var creds DeviceCredentials
	if err := yaml.Unmarshal([]byte(*out.Parameter.Value), &creds); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("parameter %s: username and password are required", paramName)
	}
	return &creds, nil
}
