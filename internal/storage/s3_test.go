package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followmate/internal/auth"
	"followmate/internal/config"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		data, _ := io.ReadAll(in.Body)
		f.body = string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		Bucket:        "avatars",
		Folder:        "/follow-mate/",
		PublicBaseURL: "https://cdn.example.com/",
	}
}

func TestS3Uploader_Upload(t *testing.T) {
	putter := &fakePutter{}
	u := newS3Uploader(putter, testStorageConfig())

	url, err := u.Upload(context.Background(), auth.Photo{
		Filename:    "me.png",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("\x89PNG"),
	})
	require.NoError(t, err)

	require.NotNil(t, putter.in)
	key := aws.ToString(putter.in.Key)
	assert.True(t, strings.HasPrefix(key, "follow-mate/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)
	assert.Equal(t, "avatars", aws.ToString(putter.in.Bucket))
	assert.Equal(t, "image/png", aws.ToString(putter.in.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(putter.in.ContentLength))
	assert.Equal(t, "\x89PNG", putter.body)
	assert.Equal(t, "https://cdn.example.com/"+key, url)
}

func TestS3Uploader_RejectsUnsupportedType(t *testing.T) {
	putter := &fakePutter{}
	u := newS3Uploader(putter, testStorageConfig())

	_, err := u.Upload(context.Background(), auth.Photo{ContentType: "application/pdf", Body: strings.NewReader("%PDF")})
	assert.True(t, errors.Is(err, ErrUnsupportedType))
	assert.Nil(t, putter.in)
}

func TestS3Uploader_PutError(t *testing.T) {
	putter := &fakePutter{err: errors.New("access denied")}
	u := newS3Uploader(putter, testStorageConfig())

	_, err := u.Upload(context.Background(), auth.Photo{ContentType: "image/jpeg", Body: strings.NewReader("jpeg")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewS3Uploader(t *testing.T) {
	cfg := testStorageConfig()
	cfg.Region = "us-east-1"
	cfg.AccessKey = "key"
	cfg.SecretKey = "secret"
	cfg.Endpoint = "http://127.0.0.1:9000"

	u, err := NewS3Uploader(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "avatars", u.bucket)
	assert.Equal(t, "follow-mate", u.folder)
}
