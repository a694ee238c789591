package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   user directory DSN
//	-s string   token HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-n int      bcrypt cost
//	-k string   identity provider API key
//	-i string   identity provider endpoint
//	-j string   identity provider project id
//	-f string   identity provider service-account credentials file
//	-o int      identity provider request timeout, seconds
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-t", "-r", "-n", "-k", "-i", "-j", "-f", "-o", "-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "user directory DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.IntVar(&config.PasswordHashCost, "n", config.PasswordHashCost, "bcrypt cost")
	fs.StringVar(&config.IdentityAPIKey, "k", config.IdentityAPIKey, "identity provider API key")
	fs.StringVar(&config.IdentityEndpoint, "i", config.IdentityEndpoint, "identity provider endpoint")
	fs.StringVar(&config.IdentityProjectID, "j", config.IdentityProjectID, "identity provider project id")
	fs.StringVar(&config.IdentityCredentialsFile, "f", config.IdentityCredentialsFile, "identity provider service-account credentials file")
	identityTimeout := fs.Int("o", int(config.IdentityTimeout.Seconds()), "identity provider request timeout (in seconds)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
	config.IdentityTimeout = time.Duration(*identityTimeout) * time.Second
}
