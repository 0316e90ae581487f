package objstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melcdl/melcdl-backend/internal/common"
)

type fakeAPI struct {
	putIn     *s3.PutObjectInput
	putErr    error
	getOut    *s3.GetObjectOutput
	getErr    error
	headErr   error
	createErr error
}

func (f *fakeAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putIn = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeAPI) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeAPI) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &s3.CreateBucketOutput{}, nil
}

func TestPut_PassesBucketAndKey(t *testing.T) {
	f := &fakeAPI{}
	c := &Client{s3: f}

	require.NoError(t, c.Put(context.Background(), "melcdl", "files/f1.jpg", []byte("img")))
	require.NotNil(t, f.putIn)
	assert.Equal(t, "melcdl", *f.putIn.Bucket)
	assert.Equal(t, "files/f1.jpg", *f.putIn.Key)
}

func TestGet_ReturnsBody(t *testing.T) {
	f := &fakeAPI{getOut: &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("payload"))}}
	c := &Client{s3: f}

	data, err := c.Get(context.Background(), "melcdl", "files/f1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestGet_NoSuchKeyMapsToNotFound(t *testing.T) {
	f := &fakeAPI{getErr: &types.NoSuchKey{}}
	c := &Client{s3: f}

	_, err := c.Get(context.Background(), "melcdl", "files/ghost.jpg")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestHead_GenericAPINotFound(t *testing.T) {
	f := &fakeAPI{headErr: &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}}
	c := &Client{s3: f}

	err := c.Head(context.Background(), "melcdl", "models/weights.json")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestHead_TransportErrorIsNotNotFound(t *testing.T) {
	f := &fakeAPI{headErr: errors.New("connection refused")}
	c := &Client{s3: f}

	err := c.Head(context.Background(), "melcdl", "models/weights.json")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}

func TestHead_Exists(t *testing.T) {
	c := &Client{s3: &fakeAPI{}}
	assert.NoError(t, c.Head(context.Background(), "melcdl", "models/weights.json"))
}

func TestEnsureBucket_ToleratesExisting(t *testing.T) {
	c := &Client{s3: &fakeAPI{createErr: &types.BucketAlreadyOwnedByYou{}}}
	assert.NoError(t, c.EnsureBucket(context.Background(), "melcdl"))

	c = &Client{s3: &fakeAPI{createErr: &types.BucketAlreadyExists{}}}
	assert.NoError(t, c.EnsureBucket(context.Background(), "melcdl"))

	c = &Client{s3: &fakeAPI{createErr: errors.New("access denied")}}
	assert.Error(t, c.EnsureBucket(context.Background(), "melcdl"))
}

func TestJoinAndSplitPath(t *testing.T) {
	path := JoinPath("melcdl", "files/f1.jpg")
	assert.Equal(t, "melcdl/files/f1.jpg", path)

	bucket, key, err := SplitPath(path)
	require.NoError(t, err)
	assert.Equal(t, "melcdl", bucket)
	assert.Equal(t, "files/f1.jpg", key)

	_, _, err = SplitPath("no-separator")
	assert.ErrorIs(t, err, common.ErrorBadRequest)
}
