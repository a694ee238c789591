package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	sc "github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// ImportBundle is the provider's bulk user import format.
type ImportBundle struct {
	HashAlgorithm string       `json:"hashAlgorithm"`
	Users         []ImportUser `json:"users"`
}

type ImportUser struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	DisplayName  string `json:"displayName,omitempty"`
	CreatedAt    int64  `json:"createdAt,omitempty"`
}

// ExportService writes the local directory, including the bcrypt hashes, as
// an import bundle to object storage. This is the only consumer of the
// stored hash.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	log         logging.Logger
	now         func() time.Time
}

func NewExportService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, log logging.Logger) *ExportService {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &ExportService{db: db, repomanager: m, config: cfg, log: log, now: time.Now}
}

// ExportKey returns the object key for an export taken at t.
func ExportKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("exports/%04d/%02d/%02d/%v.json", t.Year(), t.Month(), t.Day(), uuid.New())
}

// BuildBundle loads every local user into an ImportBundle.
func (s *ExportService) BuildBundle(ctx context.Context) (*ImportBundle, error) {
	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	bundle := &ImportBundle{HashAlgorithm: "BCRYPT", Users: make([]ImportUser, 0, len(list))}
	for _, u := range list {
		iu := ImportUser{
			LocalID:      u.ID,
			Email:        u.Email,
			PasswordHash: base64.StdEncoding.EncodeToString([]byte(u.PasswordHash)),
			DisplayName:  u.DisplayName(),
		}
		if !u.CreatedAt.IsZero() {
			iu.CreatedAt = u.CreatedAt.UnixMilli()
		}
		bundle.Users = append(bundle.Users, iu)
	}
	return bundle, nil
}

// Export uploads the bundle and returns its object key. With an export
// passphrase configured the bundle is sealed and the key gets a ".sealed"
// suffix.
func (s *ExportService) Export(ctx context.Context) (string, error) {
	bundle, err := s.BuildBundle(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(bundle)
	if err != nil {
		return "", err
	}

	key := ExportKey(s.now())
	contentType := "application/json"

	if s.config.ExportPassphrase != "" {
		body, err = cryptox.Seal(body, []byte(s.config.ExportPassphrase))
		if err != nil {
			return "", fmt.Errorf("seal export: %w", err)
		}
		key += ".sealed"
		contentType = "application/octet-stream"
	}

	client, err := s.getS3Client(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}

	s.log.Info(ctx, "directory exported", "key", key, "users", len(bundle.Users))
	return key, nil
}

func (s *ExportService) getS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}
