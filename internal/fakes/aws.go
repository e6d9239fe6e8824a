package fakes

import (
	"context"
	"maps"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// KMS unwraps any blob to DataKey. KeyID and Context, when set, must match
// the request the way a real key policy would; mismatches surface as the
// service's own exception types.
type KMS struct {
	mu sync.Mutex

	DataKey []byte
	KeyID   string
	Context map[string]string
	Err     error

	Calls    int
	LastBlob []byte
}

func (f *KMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastBlob = in.CiphertextBlob

	switch {
	case f.Err != nil:
		return nil, f.Err
	case f.KeyID != "" && (in.KeyId == nil || *in.KeyId != f.KeyID):
		return nil, &kmstypes.IncorrectKeyException{}
	case f.Context != nil && !maps.Equal(f.Context, in.EncryptionContext):
		return nil, &kmstypes.InvalidCiphertextException{}
	}
	// KMSKeySource wipes Plaintext once encoded.
	return &kms.DecryptOutput{Plaintext: append([]byte(nil), f.DataKey...)}, nil
}

// SSM serves Params by name.
type SSM struct {
	mu sync.Mutex

	Params map[string]string
	Err    error

	Calls       int
	LastName    string
	LastDecrypt bool
}

func (f *SSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	name := *in.Name
	f.LastName = name
	f.LastDecrypt = in.WithDecryption != nil && *in.WithDecryption

	v, ok := f.Params[name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: &name, Value: &v}}, nil
}
