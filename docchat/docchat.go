// Package docchat holds process-wide defaults shared by the config, server and CLI layers.
package docchat

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppName = "docchat"

	DefaultModel        = "qwen-plus"
	DefaultProvider     = "dashscope"
	DefaultServerAddr   = ":8080"
	DefaultMaxUploadMiB = 20

	// CredentialEnv names the environment variable holding the DashScope API key.
	CredentialEnv = "DASHSCOPE_API_KEY"
)

// DefaultConfigPath is the per-user config directory, e.g. ~/.config/docchat.
var DefaultConfigPath = func() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "."+DefaultAppName)
	}
	return filepath.Join(dir, DefaultAppName)
}()
