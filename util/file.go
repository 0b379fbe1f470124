package util

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJson writes JSON config object to a file creating parent directories if required.
// The output JSON is pretty-formatted and written atomically (temp file + rename).
func WriteJson(ctx context.Context, file string, obj interface{}) error {
	configDir, configFileName, err := prepareConfigFileDir(file)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return fmt.Errorf("write json start: %w", ctx.Err())
	}

	// make it pretty
	bs, err := json.MarshalIndent(obj, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	return writeBytes(ctx, file, configDir, configFileName, bs)
}

// ReadJson reads a configuration object from a JSON file
func ReadJson(file string, res interface{}) error {
	bs, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(bs, res); err != nil {
		return fmt.Errorf("unmarshal %s: %w", file, err)
	}

	return nil
}

// writeBytes writes bytes to a file using atomic write (temp file + rename) for safety.
func writeBytes(ctx context.Context, file string, configDir string, configFileName string, bs []byte) error {
	tempFile, err := os.CreateTemp(configDir, ".*"+configFileName)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	tempFileName := tempFile.Name()

	if err := os.Chmod(tempFileName, 0600); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempFileName)
		return fmt.Errorf("set temp file permissions: %w", err)
	}

	if _, err = tempFile.Write(bs); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempFileName)
		return fmt.Errorf("write: %w", err)
	}

	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tempFileName, err)
	}

	defer func() {
		if _, serr := os.Stat(tempFileName); serr == nil {
			_ = os.Remove(tempFileName)
		}
	}()

	// Check context again before the final move
	if ctx.Err() != nil {
		return fmt.Errorf("after temp file: %w", ctx.Err())
	}

	if err = os.Rename(tempFileName, file); err != nil {
		return fmt.Errorf("move %s to %s: %w", tempFileName, file, err)
	}

	return nil
}

func prepareConfigFileDir(file string) (string, string, error) {
	configDir, configFileName := filepath.Split(file)
	if configDir == "" {
		return filepath.Dir(file), configFileName, nil
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "", "", fmt.Errorf("create dir %s: %w", configDir, err)
	}

	return configDir, configFileName, nil
}
