// Package register adds the codesync MCP endpoint to an MCP client config.
package register

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// Scope selects which client config file is updated.
type Scope string

const (
	// ScopeProject writes <directory>/.mcp.json.
	ScopeProject Scope = "project"
	// ScopeUser writes ~/.claude.json.
	ScopeUser Scope = "user"
)

// ParseScope validates a scope argument.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeProject, ScopeUser:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown scope %q (must be %q or %q)", s, ScopeProject, ScopeUser)
	}
}

// Options configures a registration.
type Options struct {
	Scope      Scope
	Directory  string // project scope only, defaults to "."
	ServerName string
	// Addr is the server listen address, e.g. "127.0.0.1:8000".
	Addr string
}

type mcpServerEntry struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Run writes the server entry and returns the config file it updated.
func Run(options Options) (string, error) {
	if options.ServerName == "" {
		return "", fmt.Errorf("server name is required")
	}
	if options.Addr == "" {
		return "", fmt.Errorf("server address is required")
	}

	configPath, err := resolveConfigPath(options.Scope, options.Directory)
	if err != nil {
		return "", fmt.Errorf("resolving config path: %w", err)
	}

	if err := writeConfig(configPath, options.ServerName, buildEntry(options.Addr)); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}
	return configPath, nil
}

// DeriveServerName extracts a server name from a binary path by stripping .exe and -mcp suffixes.
func DeriveServerName(binaryPath string) string {
	name := filepath.Base(binaryPath)
	name = strings.TrimSuffix(name, ".exe")
	name = strings.TrimSuffix(name, "-mcp")
	return name
}

// MCPURL returns the MCP endpoint URL for a listen address. Wildcard hosts
// are replaced with the loopback address clients can actually dial.
func MCPURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/mcp"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/mcp"
}

func resolveConfigPath(scope Scope, directory string) (string, error) {
	switch scope {
	case ScopeProject:
		if directory == "" {
			directory = "."
		}
		absDir, err := filepath.Abs(directory)
		if err != nil {
			return "", fmt.Errorf("resolving directory %s: %w", directory, err)
		}
		return filepath.Join(absDir, ".mcp.json"), nil
	case ScopeUser:
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(homeDir, ".claude.json"), nil
	default:
		return "", fmt.Errorf("unknown scope %q", scope)
	}
}

func buildEntry(addr string) mcpServerEntry {
	return mcpServerEntry{Type: "http", URL: MCPURL(addr)}
}

// writeConfig merges entry into the mcpServers object of configPath. The
// existing file may contain comments and trailing commas; it is rewritten as
// standard JSON.
func writeConfig(configPath string, serverName string, entry mcpServerEntry) error {
	config := map[string]any{
		"mcpServers": map[string]any{},
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return fmt.Errorf("parsing existing config %s: %w", configPath, err)
		}
		if err := json.Unmarshal(standardized, &config); err != nil {
			return fmt.Errorf("decoding existing config %s: %w", configPath, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("reading %s: %w", configPath, err)
	}

	servers, ok := config["mcpServers"]
	if !ok || servers == nil {
		servers = map[string]any{}
		config["mcpServers"] = servers
	}

	serversMap, ok := servers.(map[string]any)
	if !ok {
		return fmt.Errorf("mcpServers in %s is not an object", configPath)
	}
	serversMap[serverName] = entry

	output, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	output = append(output, '\n')

	if err := atomic.WriteFile(configPath, bytes.NewReader(output)); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	return nil
}
