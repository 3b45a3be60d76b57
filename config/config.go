package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"wandb-canvas/log"
)

const (
	ConfigFileName = "config.json"
	SocketFileName = "canvas.sock"
	defaultProgram = "leet"
)

// GetConfigDir returns the path to the application's configuration directory
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".wandb-canvas"), nil
}

// Config represents the application configuration
type Config struct {
	// ViewerProgram is the command used to launch the terminal run viewer.
	ViewerProgram string `json:"viewer_program"`
	// CaptureIntervalMs is the interval (ms) at which the agent captures the
	// viewer pane. 0 disables the repeating capture, leaving a single capture
	// on startup.
	CaptureIntervalMs int `json:"capture_interval_ms"`
	// SplitPercent is the size of newly created panes as a percentage of the
	// window.
	SplitPercent int `json:"split_percent"`
	// SocketPath overrides the unix socket the agent connects to. Empty means
	// the default socket under the config directory.
	SocketPath string `json:"socket_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	program, err := GetViewerCommand()
	if err != nil {
		log.ErrorLog.Printf("failed to resolve viewer command: %v", err)
		program = defaultProgram
	}

	return &Config{
		ViewerProgram:     program,
		CaptureIntervalMs: 1500,
		SplitPercent:      50,
		SocketPath:        "",
	}
}

// ResolveSocketPath returns the socket path to use, falling back to the
// default under the config directory when none is configured.
func (c *Config) ResolveSocketPath() (string, error) {
	if c.SocketPath != "" {
		return c.SocketPath, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, SocketFileName), nil
}

// GetViewerCommand attempts to find the viewer command in the user's shell.
// It checks in the following order:
// 1. Shell alias resolution: using "which" command
// 2. PATH lookup
//
// If both fail, it returns an error.
func GetViewerCommand() (string, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}

	// Force the shell to load the user's profile and then run the command
	var shellCmd string
	if strings.Contains(shell, "zsh") {
		shellCmd = "source ~/.zshrc &>/dev/null || true; which " + defaultProgram
	} else if strings.Contains(shell, "bash") {
		shellCmd = "source ~/.bashrc &>/dev/null || true; which " + defaultProgram
	} else {
		shellCmd = "which " + defaultProgram
	}

	cmd := exec.Command(shell, "-c", shellCmd)
	output, err := cmd.Output()
	if err == nil && len(output) > 0 {
		path := strings.TrimSpace(string(output))
		if path != "" {
			// The output may be an alias definition rather than a path
			aliasRegex := regexp.MustCompile(`(?:aliased to|->|=)\s*([^\s]+)`)
			matches := aliasRegex.FindStringSubmatch(path)
			if len(matches) > 1 {
				path = matches[1]
			}
			return path, nil
		}
	}

	viewerPath, err := exec.LookPath(defaultProgram)
	if err == nil {
		return viewerPath, nil
	}

	return "", fmt.Errorf("%s command not found in aliases or PATH", defaultProgram)
}

func LoadConfig() *Config {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultConfig()
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create and save default config if file doesn't exist
			defaultCfg := DefaultConfig()
			if saveErr := saveConfig(defaultCfg); saveErr != nil {
				log.WarningLog.Printf("failed to save default config: %v", saveErr)
			}
			return defaultCfg
		}

		log.WarningLog.Printf("failed to get config file: %v", err)
		return DefaultConfig()
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		log.ErrorLog.Printf("failed to parse config file at %s: %v\nConfig content preview: %s", configPath, err, preview)

		// Backup the corrupted config before falling back to defaults
		backupPath := configPath + ".corrupt." + time.Now().Format("20060102-150405")
		if backupErr := os.WriteFile(backupPath, data, 0644); backupErr == nil {
			log.InfoLog.Printf("Backed up corrupted config to: %s", backupPath)
		}

		return DefaultConfig()
	}

	return &config
}

// saveConfig saves the configuration to disk
func saveConfig(config *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// ApplyUpdate merges a raw config payload from the controller into c.
// Unknown fields are ignored; fields absent from the payload keep their
// current values.
func (c *Config) ApplyUpdate(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config update: %w", err)
	}
	return nil
}
