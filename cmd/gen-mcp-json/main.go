package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	cfg "github.com/entra-mcp/entra-mcp/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "ENTRA_MCP_"

// Credentials stay out of the generated file; the client must supply them.
var secretKeys = map[string]string{
	"directory.client_secret": "AZURE_CLIENT_SECRET",
	"interpreter.api_key":     "AZURE_OPENAI_API_KEY",
	"http.auth.jwt_secret":    "ENTRA_MCP_HTTP_AUTH_JWT_SECRET",
}

type clientConfig struct {
	Servers map[string]serverEntry `json:"mcpServers"`
}

// serverEntry env is a plain map: encoding/json writes map keys sorted, so output is stable.
type serverEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

type genOptions struct {
	output  string
	command string
	name    string
	stdout  bool
}

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := genOptions{command: defaultCommand(), name: "entra"}

	cmd := &cobra.Command{
		Use:           "gen-mcp-json",
		Short:         "Write an MCP client config that launches the stdio server with the current settings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(stdout, stderr, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: .mcp.json at the module root)")
	cmd.Flags().StringVar(&opts.command, "command", opts.command, "server binary the client launches")
	cmd.Flags().StringVar(&opts.name, "name", opts.name, "server key in mcpServers")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "print instead of writing a file")
	return cmd
}

func generate(stdout, stderr io.Writer, opts genOptions) error {
	v := viper.New()
	if _, err := cfg.LoadConfigWith(v); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	env, omitted := buildEnv(v.AllSettings())
	for _, name := range omitted {
		fmt.Fprintf(stderr, "note: %s was left out; set it in the MCP client environment\n", name)
	}

	data, err := render(opts.name, opts.command, env)
	if err != nil {
		return err
	}
	if opts.stdout {
		_, err := stdout.Write(data)
		return err
	}

	outPath := opts.output
	if outPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		root, err := findModuleRoot(wd)
		if err != nil {
			return fmt.Errorf("failed to locate module root: %w", err)
		}
		outPath = filepath.Join(root, ".mcp.json")
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	fmt.Fprintf(stderr, "wrote %s\n", outPath)
	return nil
}

func render(name, command string, env map[string]string) ([]byte, error) {
	doc := clientConfig{Servers: map[string]serverEntry{
		name: {Command: command, Args: []string{}, Env: env},
	}}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client config: %w", err)
	}
	return append(data, '\n'), nil
}

// defaultCommand honours ENTRA_MCP_GEN_COMMAND, then BUILD_DIR/BINARY_NAME, then ./build/entra-mcp.
func defaultCommand() string {
	if command := os.Getenv("ENTRA_MCP_GEN_COMMAND"); command != "" {
		return command
	}
	buildDir, binName := os.Getenv("BUILD_DIR"), os.Getenv("BINARY_NAME")
	if buildDir != "" && binName != "" {
		return filepath.ToSlash(filepath.Join(buildDir, binName))
	}
	return "./build/entra-mcp"
}

func findModuleRoot(start string) (string, error) {
	for dir := start; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return "", errors.New("go.mod not found in any parent directory")
		}
	}
}

// buildEnv turns viper settings into ENTRA_MCP_* variables for a stdio client.
// It returns the names of the credentials it left out, sorted.
func buildEnv(settings map[string]any) (map[string]string, []string) {
	env := make(map[string]string)
	var omitted []string
	walkSettings("", settings, func(key string, value any) {
		if name, secret := secretKeys[key]; secret {
			if stringify(value) != "" {
				omitted = append(omitted, name)
			}
			return
		}
		env[toEnvKey(key)] = stringify(value)
	})
	env[toEnvKey("transport.type")] = "stdio"
	sort.Strings(omitted)
	return env, omitted
}

func toEnvKey(dotKey string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(dotKey, ".", "_"))
}

// walkSettings visits every leaf of a nested viper settings map under its dotted key.
func walkSettings(prefix string, in map[string]any, visit func(key string, value any)) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch nested := v.(type) {
		case map[string]any:
			walkSettings(key, nested, visit)
		case map[any]any:
			m := make(map[string]any, len(nested))
			for nk, nv := range nested {
				m[fmt.Sprint(nk)] = nv
			}
			walkSettings(key, m, visit)
		default:
			visit(key, v)
		}
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, 0, len(val))
		for _, e := range val {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, ",")
	case time.Duration:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
