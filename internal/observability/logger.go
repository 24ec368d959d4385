package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger serves one-shot commands (SIMPLE profile, stderr).
	CLILogger *logging.Logger

	// ServerLogger serves `serve`, STRUCTURED unless configured otherwise.
	ServerLogger *logging.Logger
)

// InitCLILogger installs the CLI logger; verbose lowers it to DEBUG.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// ServerLoggerOptions configures the long-running server logger.
type ServerLoggerOptions struct {
	Service string
	Level   string
	// Profile is SIMPLE (console lines) or STRUCTURED (JSON). Empty means STRUCTURED.
	Profile     string
	Namespace   string
	Environment string
}

// InitServerLogger initializes the server logger. Lookups running under
// `serve` share this logger; CLI lookups fall back to CLILogger.
func InitServerLogger(opts ServerLoggerOptions) {
	staticFields := make(map[string]any)
	if opts.Namespace != "" {
		staticFields["namespace"] = opts.Namespace
	}

	environment := opts.Environment
	if environment == "" {
		environment = "production"
	}

	profile := logging.ProfileStructured
	sink := logging.SinkConfig{
		Type:   "console",
		Format: "json",
		Console: &logging.ConsoleSinkConfig{
			Stream:   "stderr",
			Colorize: false,
		},
	}
	if strings.EqualFold(opts.Profile, "simple") {
		profile = logging.ProfileSimple
		sink.Format = "console"
	}

	config := &logging.LoggerConfig{
		Profile:      profile,
		DefaultLevel: parseLogLevel(opts.Level),
		Service:      opts.Service,
		Environment:  environment,
		StaticFields: staticFields,
		Sinks:        []logging.SinkConfig{sink},
	}
	if profile == logging.ProfileStructured {
		config.Middleware = []logging.MiddlewareConfig{
			{
				Name:    "correlation",
				Enabled: true,
				Order:   100,
				Config:  make(map[string]any),
			},
		}
		config.EnableCaller = true
		config.EnableStacktrace = true
	}

	logger, err := logging.New(config)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}

	ServerLogger = logger
}

// Logger returns the most specific logger initialized so far, or nil.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

var logLevels = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// parseLogLevel maps a config level onto a gofulmen severity. Unknown levels
// mean INFO.
func parseLogLevel(level string) string {
	if severity, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return severity
	}
	return "INFO"
}

// exitWithCodeStderr reports a logger setup failure. No logger exists yet,
// so it writes to stderr.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}
	os.Exit(int(exitCode))
}
