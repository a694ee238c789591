package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	sc "github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubS3(t *testing.T, put func(in *s3.PutObjectInput) error) {
	t.Helper()
	origLoad, origPut := loadDefaultAWSConfig, putObject
	t.Cleanup(func() { loadDefaultAWSConfig, putObject = origLoad, origPut })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		if err := put(in); err != nil {
			return nil, err
		}
		return &s3.PutObjectOutput{}, nil
	}
}

func newExportService(repo *fakeUsersRepo) *ExportService {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	s := NewExportService(nil, &fakeRepoManager{u: repo}, cfg, nil)
	s.now = func() time.Time { return time.Date(2024, 2, 3, 23, 0, 0, 0, time.UTC) }
	return s
}

func TestExportKey(t *testing.T) {
	key := ExportKey(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^exports/2024/02/03/[0-9a-f-]{36}\.json$`), key)
}

func TestExport_UploadsBundle(t *testing.T) {
	repo := newFakeUsersRepo()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.add(&models.User{ID: "u1", Email: "a@example.com", PasswordHash: "$2a$10$abc", FirstName: "A", LastName: "One", CreatedAt: created})

	var got ImportBundle
	var bucket, key string
	stubS3(t, func(in *s3.PutObjectInput) error {
		bucket, key = aws.ToString(in.Bucket), aws.ToString(in.Key)
		raw, err := io.ReadAll(in.Body)
		require.NoError(t, err)
		return json.Unmarshal(raw, &got)
	})

	s := newExportService(repo)
	out, err := s.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, key, out)
	assert.Equal(t, "gophauth-exports", bucket)
	assert.Regexp(t, `^exports/2024/02/03/`, key)

	assert.Equal(t, "BCRYPT", got.HashAlgorithm)
	require.Len(t, got.Users, 1)
	assert.Equal(t, "u1", got.Users[0].LocalID)
	assert.Equal(t, "A One", got.Users[0].DisplayName)
	assert.Equal(t, created.UnixMilli(), got.Users[0].CreatedAt)

	hash, err := base64.StdEncoding.DecodeString(got.Users[0].PasswordHash)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$abc", string(hash))
}

func TestExport_SealedWithPassphrase(t *testing.T) {
	repo := newFakeUsersRepo()
	repo.add(&models.User{ID: "u1", Email: "a@example.com", PasswordHash: "$2a$10$abc"})

	var raw []byte
	var key, contentType string
	stubS3(t, func(in *s3.PutObjectInput) error {
		key, contentType = aws.ToString(in.Key), aws.ToString(in.ContentType)
		var err error
		raw, err = io.ReadAll(in.Body)
		return err
	})

	s := newExportService(repo)
	s.config.ExportPassphrase = "correct horse"
	_, err := s.Export(context.Background())
	require.NoError(t, err)

	assert.Regexp(t, `\.json\.sealed$`, key)
	assert.Equal(t, "application/octet-stream", contentType)
	assert.NotContains(t, string(raw), "a@example.com")

	plain, err := cryptox.Open(raw, []byte("correct horse"))
	require.NoError(t, err)
	var got ImportBundle
	require.NoError(t, json.Unmarshal(plain, &got))
	require.Len(t, got.Users, 1)
	assert.Equal(t, "a@example.com", got.Users[0].Email)
}

func TestExport_Failures(t *testing.T) {
	repo := newFakeUsersRepo()

	stubS3(t, func(*s3.PutObjectInput) error { return errors.New("bucket missing") })
	_, err := newExportService(repo).Export(context.Background())
	assert.ErrorContains(t, err, "bucket missing")

	repo.listErr = errors.New("db down")
	_, err = newExportService(repo).Export(context.Background())
	assert.ErrorContains(t, err, "db down")

	repo.listErr = nil
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}
	_, err = newExportService(repo).Export(context.Background())
	assert.ErrorContains(t, err, "no creds")
}
