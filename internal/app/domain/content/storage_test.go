package content

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
	"github.com/FACorreiaa/citcs-portal/internal/pkg/config"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	at := time.Unix(0, 1700000000000000000)
	tests := []struct {
		name, filename, want string
	}{
		{"plain", "poster.png", "gallery/1700000000000000000_poster.png"},
		{"path components", "../../etc/passwd", "gallery/1700000000000000000_passwd"},
		{"windows path", `C:\Users\ed\My Photo.jpg`, "gallery/1700000000000000000_My_Photo.jpg"},
		{"nothing usable", "...", "gallery/1700000000000000000_image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectKey(models.EntityGallery, tt.filename, at))
		})
	}
}

func TestS3UploaderUpload(t *testing.T) {
	putter := &fakePutter{}
	u := NewS3UploaderWithClient(putter, "content-images", "https://cdn.citcs.edu/", zap.NewNop())
	u.now = func() time.Time { return time.Unix(0, 42) }

	url, err := u.Upload(context.Background(), models.EntityAnnouncements, "flyer.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.citcs.edu/announcements/42_flyer.png", url)
	assert.Equal(t, "content-images", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "announcements/42_flyer.png", aws.ToString(putter.input.Key))
	assert.Equal(t, "image/png", aws.ToString(putter.input.ContentType))
	assert.Equal(t, "png-bytes", putter.body)
}

func TestS3UploaderFailure(t *testing.T) {
	u := NewS3UploaderWithClient(&fakePutter{err: assert.AnError}, "content-images", "https://cdn.citcs.edu", zap.NewNop())

	_, err := u.Upload(context.Background(), models.EntityGallery, "a.png", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDisabledUploader(t *testing.T) {
	u, err := NewS3Uploader(context.Background(), config.StorageConfig{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, u.Enabled())
	_, err = u.Upload(context.Background(), models.EntityGallery, "a.png", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, models.ErrStorageDisabled)
}
