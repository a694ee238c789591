package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the server config. Durations accept
// either "15m"-style strings or nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	PasswordHashCost             int            `json:"password_hash_cost"`
	IdentityAPIKey               string         `json:"identity_api_key"`
	IdentityEndpoint             string         `json:"identity_endpoint"`
	IdentityProjectID            string         `json:"identity_project_id"`
	IdentityCredentialsFile      string         `json:"identity_credentials_file"`
	IdentityTimeout              timex.Duration `json:"identity_timeout"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	ExportPassphrase             string         `json:"export_passphrase"`
	ReconcileGracePeriod         timex.Duration `json:"reconcile_grace_period"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config. Keys that are
// absent from the file leave the current value untouched. An unreadable or
// malformed file panics: the server must not start half-configured.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.PasswordHashCost != 0 {
		config.PasswordHashCost = c.PasswordHashCost
	}
	setString(&config.IdentityAPIKey, c.IdentityAPIKey)
	setString(&config.IdentityEndpoint, c.IdentityEndpoint)
	setString(&config.IdentityProjectID, c.IdentityProjectID)
	setString(&config.IdentityCredentialsFile, c.IdentityCredentialsFile)
	if c.IdentityTimeout.Duration != 0 {
		config.IdentityTimeout = c.IdentityTimeout.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.ExportPassphrase, c.ExportPassphrase)
	if c.ReconcileGracePeriod.Duration != 0 {
		config.ReconcileGracePeriod = c.ReconcileGracePeriod.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
