package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/versiman/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-k string   API-key cipher key file
//	-i string   API-key cipher IV file
//	-x string   API-key ciphertext prefix
//	-H string   API-key HTTP header name
//	-m string   default admin username
//	-n string   default admin password
//	-r int      registry call timeout, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-t", "-k", "-i", "-x", "-H", "-m", "-n", "-r", "-u", "-p", "-b", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.CryptKeyFilePath, "k", config.CryptKeyFilePath, "API-key cipher key file")
	fs.StringVar(&config.CryptIVFilePath, "i", config.CryptIVFilePath, "API-key cipher IV file")
	fs.StringVar(&config.ApiKeyPrefix, "x", config.ApiKeyPrefix, "API-key ciphertext prefix")
	fs.StringVar(&config.ApiKeyHeader, "H", config.ApiKeyHeader, "API-key header name")
	fs.StringVar(&config.DefaultAdminUsername, "m", config.DefaultAdminUsername, "default admin username")
	fs.StringVar(&config.DefaultAdminPassword, "n", config.DefaultAdminPassword, "default admin password")

	registryTimeout := fs.Int("r", int(config.RegistryTimeout.Minutes()), "registry call timeout (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RegistryTimeout = time.Duration(*registryTimeout) * time.Minute
}
