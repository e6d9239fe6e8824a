package devkit_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
	"github.com/grasp-labs/ds-devkit-go-sdk/internal/fakes"
)

func TestKMSKeySource(t *testing.T) {
	t.Parallel()
	raw, enc := fakes.NewKey(t)
	encCtx := map[string]string{"app": "billing"}
	kmsFake := &fakes.KMS{
		DataKey: raw,
		Context: encCtx,
		KeyID:   "arn:aws:kms:eu-north-1:111122223333:key/abcd",
	}
	src := &devkit.KMSKeySource{
		KMS:               kmsFake,
		WrappedKey:        base64.StdEncoding.EncodeToString([]byte("WRAPPED-KEY")),
		KeyID:             "arn:aws:kms:eu-north-1:111122223333:key/abcd",
		EncryptionContext: encCtx,
	}

	got, err := src.EncryptionKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, enc, got)
	assert.Equal(t, 1, kmsFake.Calls)
	assert.Equal(t, []byte("WRAPPED-KEY"), kmsFake.LastBlob)
}

func TestKMSKeySource_Errors(t *testing.T) {
	t.Parallel()
	src := &devkit.KMSKeySource{KMS: &fakes.KMS{}, WrappedKey: "%%%"}
	_, err := src.EncryptionKey(context.Background())
	assert.Error(t, err)

	kmsFake := &fakes.KMS{Err: errors.New("access denied")}
	src = &devkit.KMSKeySource{KMS: kmsFake, WrappedKey: base64.StdEncoding.EncodeToString([]byte("w"))}
	_, err = src.EncryptionKey(context.Background())
	assert.ErrorContains(t, err, "access denied")

	wrapped := base64.StdEncoding.EncodeToString([]byte("w"))
	src = &devkit.KMSKeySource{
		KMS:               &fakes.KMS{Context: map[string]string{"app": "billing"}},
		WrappedKey:        wrapped,
		EncryptionContext: map[string]string{"app": "payroll"},
	}
	_, err = src.EncryptionKey(context.Background())
	var badCtx *kmstypes.InvalidCiphertextException
	assert.ErrorAs(t, err, &badCtx)

	src = &devkit.KMSKeySource{KMS: &fakes.KMS{KeyID: "key/a"}, WrappedKey: wrapped, KeyID: "key/b"}
	_, err = src.EncryptionKey(context.Background())
	var badKey *kmstypes.IncorrectKeyException
	assert.ErrorAs(t, err, &badKey)
}

func TestSSMKeySource(t *testing.T) {
	t.Parallel()
	_, enc := fakes.NewKey(t)
	ssmFake := &fakes.SSM{Params: map[string]string{"/devkit/prod/key": enc}}
	src := &devkit.SSMKeySource{SSM: ssmFake, Name: "/devkit/prod/key"}

	got, err := src.EncryptionKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, enc, got)
	assert.Equal(t, "/devkit/prod/key", ssmFake.LastName)
	assert.True(t, ssmFake.LastDecrypt)

	_, err = (&devkit.SSMKeySource{SSM: ssmFake, Name: "/missing"}).EncryptionKey(context.Background())
	var missing *ssmtypes.ParameterNotFound
	assert.ErrorAs(t, err, &missing)
}

func TestResolver_KeySourceResolvedOnce(t *testing.T) {
	t.Parallel()
	raw, _ := fakes.NewKey(t)
	kmsFake := &fakes.KMS{DataKey: raw}
	fb := &fakes.Backend{}
	fb.SetSecret("app", "e", "A", fakes.MustSeal(t, raw, "1"))
	fb.SetSecret("app", "e", "B", fakes.MustSeal(t, raw, "2"))

	r, err := devkit.New(context.Background(), devkit.Options{
		Backend:     fb,
		KeySource:   &devkit.KMSKeySource{KMS: kmsFake, WrappedKey: base64.StdEncoding.EncodeToString([]byte("w"))},
		EnableCache: devkit.Bool(false),
	})
	require.NoError(t, err)

	for _, k := range []string{"A", "B", "A"} {
		_, err := r.GetSecret(context.Background(), "app", "e", k)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, kmsFake.Calls)
}

func TestResolver_ExplicitKeySkipsKeySource(t *testing.T) {
	t.Parallel()
	_, enc := fakes.NewKey(t)
	ssmFake := &fakes.SSM{}
	_, err := devkit.New(context.Background(), devkit.Options{
		Backend:       &fakes.Backend{},
		EncryptionKey: enc,
		KeySource:     &devkit.SSMKeySource{SSM: ssmFake, Name: "/k"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, ssmFake.Calls)
}

func TestResolver_KeySourceFailure(t *testing.T) {
	t.Parallel()
	_, err := devkit.New(context.Background(), devkit.Options{
		Backend:   &fakes.Backend{},
		KeySource: &devkit.SSMKeySource{SSM: &fakes.SSM{Err: errors.New("throttled")}, Name: "/k"},
	})
	require.ErrorIs(t, err, devkit.ErrConfiguration)
	assert.ErrorContains(t, err, "throttled")
}

func TestStaticAndEnvKey(t *testing.T) {
	t.Setenv("MY_DEVKIT_KEY", "abc")
	got, err := devkit.EnvKey("MY_DEVKIT_KEY").EncryptionKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	got, err = devkit.StaticKey("xyz").EncryptionKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xyz", got)
}
