package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tokenEnv = "MAILCTL_TOKEN"

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".mailctl-token"
	}
	return filepath.Join(dir, "mailctl", "token")
}

// resolveToken 优先级：--token > MAILCTL_TOKEN > token 文件
func resolveToken(flagValue, path string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(tokenEnv); v != "" {
		return v, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
