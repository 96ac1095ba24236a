package client

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	apiKeyPrefix = "cad_"

	envAPIKey = "ADVISOR_API_KEY"
	envAPIURL = "ADVISOR_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

// GlobalConfig is the per-user client state kept in config.json.
type GlobalConfig struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url"`
	// LastSession is the chat session resumed by `advisor chat` without --session.
	LastSession string `json:"last_session,omitempty"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "cryptoadvisor"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig returns nil without error when no config file exists.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// SaveGlobalConfig writes config.json readable by the owner only.
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.Remove(configPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// RememberSession records id as the session to resume. It is a no-op
// when the user never logged in, so env-only setups leave no file behind.
func RememberSession(id string) error {
	config, err := LoadGlobalConfig()
	if err != nil || config == nil {
		return err
	}
	if config.LastSession == id {
		return nil
	}
	config.LastSession = id
	return SaveGlobalConfig(config)
}

// IsValidAPIKey checks the key shape: cad_ followed by 64 hex digits.
func IsValidAPIKey(key string) bool {
	hexPart, ok := strings.CutPrefix(key, apiKeyPrefix)
	if !ok || len(hexPart) != 64 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceNone         CredentialSource = "none"
)

// GetCredentialSource resolves credentials in order flag, env, global config.
// A source only counts when it provides the key; the URL falls back to the
// default.
func GetCredentialSource(flagAPIKey, flagAPIURL string) (CredentialSource, string, string) {
	if flagAPIKey != "" {
		return SourceFlag, flagAPIKey, orDefaultURL(flagAPIURL, os.Getenv(envAPIURL))
	}

	if envKey := os.Getenv(envAPIKey); envKey != "" {
		return SourceEnv, envKey, orDefaultURL(flagAPIURL, os.Getenv(envAPIURL))
	}

	config, err := LoadGlobalConfig()
	if err == nil && config != nil && config.APIKey != "" {
		return SourceGlobalConfig, config.APIKey, orDefaultURL(flagAPIURL, config.APIURL)
	}

	return SourceNone, "", ""
}

func orDefaultURL(urls ...string) string {
	for _, u := range urls {
		if u != "" {
			return strings.TrimRight(u, "/")
		}
	}
	return defaultAPIURL
}
