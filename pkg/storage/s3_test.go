package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ s3API       = (*s3.Client)(nil)
	_ s3Presigner = (*s3.PresignClient)(nil)
)

type s3Stub struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (s *s3Stub) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.input = params
	if params.Body != nil {
		s.body, _ = io.ReadAll(params.Body)
	}
	return &s3.PutObjectOutput{}, s.err
}

type presignStub struct {
	key string
}

func (p *presignStub) PresignGetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.key = aws.ToString(params.Key)
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example/" + p.key + "?sig=1"}, nil
}

func TestS3StoragePutAndPresign(t *testing.T) {
	client := &s3Stub{}
	presigner := &presignStub{}
	store := newS3Storage(client, presigner, "exports", 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "history/c1.pdf", "application/pdf", []byte("%PDF")))
	assert.Equal(t, "exports", aws.ToString(client.input.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(client.input.ContentType))
	assert.Equal(t, []byte("%PDF"), client.body)

	url, expiresAt, err := store.DownloadURL(ctx, "history/c1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/history/c1.pdf?sig=1", url)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)
}

func TestS3StoragePutError(t *testing.T) {
	store := newS3Storage(&s3Stub{err: errors.New("denied")}, &presignStub{}, "exports", 0)
	err := store.Put(context.Background(), "k", "text/csv", nil)
	assert.Error(t, err)
}
