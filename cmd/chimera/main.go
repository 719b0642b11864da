package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jllopis/chimera/pkg/config"
	"github.com/jllopis/chimera/pkg/llm"
	"github.com/jllopis/chimera/pkg/signature"
	"github.com/jllopis/chimera/pkg/telemetry"
)

const version = "dev"

type globalFlags struct {
	ConfigArgs []string
	LogLevel   string
	LogFormat  string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		fail(global.JSON, NewConfigError(err, configPath(global.ConfigArgs)))
	}

	level := cfg.Log.Level
	if global.LogLevel != "" {
		level = global.LogLevel
	}
	format := cfg.Log.Format
	if global.LogFormat != "" {
		format = global.LogFormat
	}
	// Logs go to stderr; stdout carries command output (and the MCP
	// protocol stream under serve).
	logger := telemetry.ConfigureSlog(os.Stderr, level, format)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitWithConfig("chimera", version, telemetry.Config{
			Exporter:           cfg.Telemetry.Exporter,
			OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
			OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
		})
		if err != nil {
			logger.Warn("telemetry init failed", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(shutdownCtx)
			}()
		}
	}

	switch args[0] {
	case "dissect":
		runDissect(ctx, global, cfg, logger, args[1:])
	case "inspect":
		runInspect(global, args[1:])
	case "probe":
		runProbe(ctx, global, cfg, logger, args[1:])
	case "blueprint":
		runBlueprint(ctx, global, cfg, args[1:])
	case "runs":
		runRuns(ctx, global, cfg, args[1:])
	case "similar":
		runSimilar(ctx, global, cfg, args[1:])
	case "validate":
		runValidate(ctx, global, cfg, args[1:])
	case "init":
		runInit(global, args[1:])
	case "serve":
		runServe(ctx, global, cfg, logger, args[1:])
	case "version":
		printVersion()
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--profile" || arg == "--env":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--profile="), strings.HasPrefix(arg, "--env="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--log-level":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --log-level")
			}
			flags.LogLevel = args[i+1]
			i++
		case strings.HasPrefix(arg, "--log-level="):
			flags.LogLevel = strings.TrimPrefix(arg, "--log-level=")
		case arg == "--log-format":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --log-format")
			}
			flags.LogFormat = args[i+1]
			i++
		case strings.HasPrefix(arg, "--log-format="):
			flags.LogFormat = strings.TrimPrefix(arg, "--log-format=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// configPath recovers the --config value from the raw config args, for
// error hints only.
func configPath(configArgs []string) string {
	for i, arg := range configArgs {
		if arg == "--config" && i+1 < len(configArgs) {
			return configArgs[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

// newProvider builds the completion backend named by the config. The
// mock backend answers every probe with a fixed string and exists so the
// pipeline can be exercised offline.
func newProvider(cfg config.ProviderConfig) (llm.Provider, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Kind {
	case "ollama", "":
		return llm.NewOllama(cfg.BaseURL, timeout), nil
	case "openai":
		return llm.NewOpenAI(cfg.BaseURL, cfg.APIKey, timeout), nil
	case "mock":
		return &llm.MockProvider{Response: "mock completion"}, nil
	default:
		return nil, NewInvalidArgumentError("provider", fmt.Sprintf("unknown provider kind %q", cfg.Kind))
	}
}

// loadTable resolves the classification table: a configured file, or the
// built-in defaults when none is named.
func loadTable(path string) (*signature.Table, error) {
	if path == "" {
		return signature.DefaultTable(), nil
	}
	return signature.LoadTable(path)
}

func checkTCP(addr string) bool {
	if strings.TrimSpace(addr) == "" {
		return false
	}
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func checkHTTP(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := parsed.Host
	if host == "" {
		host = parsed.Path
	}
	if host == "" {
		return false
	}
	if !strings.Contains(host, ":") {
		if parsed.Scheme == "https" {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	return checkTCP(host)
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateMessage(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}

// formatCount renders a parameter count the way model names do: 7.2B,
// 137.4M, 80.0K.
func formatCount(n uint64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	}
	return strconv.FormatUint(n, 10)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printVersion() {
	fmt.Println(version)
}

func printUsage() {
	fmt.Print(`chimera - model artifact dissection and capability synthesis

Usage:
  chimera [global flags] <command> [args]

Global flags:
  --config <path>      Path to chimera.yaml
  --profile <name>     Merge config.<name>.yaml over the base config
  --set key=value      Override config (repeatable)
  --log-level <level>  debug, info, warn, error
  --log-format <fmt>   text or json
  --json               JSON output

Commands:
  dissect <root>...    Dissect every artifact under the roots and synthesize a blueprint
                       [--out <dir>] [--parallel N] [--model <m>] [--provider <kind>]
                       [--name <blueprint>] [--no-store] [--no-index]
  inspect <file.gguf>  Decode one container and summarize it [--tensors]
  probe                Run the behavioral battery against a completion model [--model <m>]
  blueprint <run-id>   Re-emit the blueprint of a stored run
  runs                 List stored runs [--limit N]
  similar <artifact>   Nearest neighbors by capability vector [--limit N]
  validate             Check config, classification table and backends [--table <path>]
  init <dir>           Write a starter config, classification table and sample artifact
  serve                Serve dissection tools over MCP stdio
  version              Print version
  help                 Show this help

`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}
