package devops

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParameters struct {
	value *string
	err   error
	name  string
}

func (f *fakeParameters) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.name = aws.ToString(params.Name)
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: f.value}}, nil
}

func TestReadDeviceCredentials(t *testing.T) {
	client := &fakeParameters{value: aws.String("username: sync\npassword: s3cret\n")}

	creds, err := ReadDeviceCredentials(context.Background(), client, "/attendance/device")
	require.NoError(t, err)
	assert.Equal(t, "/attendance/device", client.name)
	assert.Equal(t, "sync", creds.Username)
	assert.Equal(t, "s3cret", creds.Password)
}

func TestReadDeviceCredentialsErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeParameters
	}{
		{name: "ssm failure", client: &fakeParameters{err: errors.New("access denied")}},
		{name: "empty value", client: &fakeParameters{}},
		{name: "missing password", client: &fakeParameters{value: aws.String("username: sync\n")}},
		{name: "not yaml", client: &fakeParameters{value: aws.String("[")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDeviceCredentials(context.Background(), tt.client, "p")
			assert.Error(t, err)
		})
	}
}
