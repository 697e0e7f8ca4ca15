package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// APIKeyEnv is the environment variable holding the provider credential.
const APIKeyEnv = "GOOGLE_API_KEY"

// Credentials holds secrets read from the environment.
type Credentials struct {
	APIKey string `env:"GOOGLE_API_KEY,required,notEmpty"`
}

// LoadCredentials loads .env from the working directory (without overriding
// variables already set) and reads the API key from the environment.
func LoadCredentials() (*Credentials, error) {
	return LoadCredentialsFrom(".env")
}

// LoadCredentialsFrom is LoadCredentials with an explicit dotenv path.
func LoadCredentialsFrom(dotenvPath string) (*Credentials, error) {
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigError{Msg: "failed to read " + dotenvPath, Err: err}
	}

	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return nil, &ConfigError{Msg: "environment variable '" + APIKeyEnv + "' not found", Err: err}
	}
	return &creds, nil
}
