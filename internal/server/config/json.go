package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/versiman/internal/flagx"
	"github.com/dmitrijs2005/versiman/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr                string         `json:"endpoint_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	ApiKeyHeader                string         `json:"api_key_header"`
	ApiKeyPrefix                string         `json:"api_key_prefix"`
	CryptKeyFilePath            string         `json:"crypt_key_file"`
	CryptIVFilePath             string         `json:"crypt_iv_file"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	DefaultAdminUsername        string         `json:"default_admin_username"`
	DefaultAdminPassword        string         `json:"default_admin_password"`
	RegistryTimeout             timex.Duration `json:"registry_timeout"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The JSON file path is taken from the -c or -config command-line flags; if
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics: a broken config file is a
// deployment error, not a runtime condition.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.ApiKeyHeader = c.ApiKeyHeader
	config.ApiKeyPrefix = c.ApiKeyPrefix
	config.CryptKeyFilePath = c.CryptKeyFilePath
	config.CryptIVFilePath = c.CryptIVFilePath
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.DefaultAdminUsername = c.DefaultAdminUsername
	config.DefaultAdminPassword = c.DefaultAdminPassword
	config.RegistryTimeout = time.Duration(c.RegistryTimeout.Duration)
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
