package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/task-manager-be/internal/storage"
)

type fakeObjects struct {
	objects map[string][]byte
	putErr  error
	lastCT  string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.lastCT = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestAvatarStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeObjects()
	store := NewWithClient(fake, "avatars")

	require.NoError(t, store.PutAvatar(ctx, "u1", []byte("png-bytes")))
	assert.Equal(t, "image/png", fake.lastCT)
	assert.Contains(t, fake.objects, "avatars/avatars/u1.png")

	data, err := store.GetAvatar(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, store.DeleteAvatar(ctx, "u1"))
	_, err = store.GetAvatar(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAvatarStore_PutError(t *testing.T) {
	fake := newFakeObjects()
	fake.putErr = errors.New("boom")
	store := NewWithClient(fake, "b")

	err := store.PutAvatar(context.Background(), "u1", []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Region: "us-east-1"})
	require.Error(t, err)
}
