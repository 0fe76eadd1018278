package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hoptrace/hoptrace/internal/config"
	"github.com/hoptrace/hoptrace/internal/enrich"
	"github.com/hoptrace/hoptrace/internal/logger"
	"github.com/hoptrace/hoptrace/internal/output"
	"github.com/hoptrace/hoptrace/internal/probe"
	"github.com/hoptrace/hoptrace/internal/trace"
	"github.com/hoptrace/hoptrace/internal/tui"
)

var (
	// errAborted is returned when the run stopped at the consecutive
	// timeout limit.
	errAborted = errors.New("destination unreachable: consecutive timeout limit reached")

	// errQuit is returned when the user leaves the interactive prompt.
	errQuit = errors.New("quit")
)

var (
	// Flags
	maxHops     int
	maxTimeouts int
	timeout     time.Duration
	forceIPv4   bool
	forceIPv6   bool
	verbose     bool
	jsonOutput  bool
	csvOutput   bool
	tuiMode     bool
	noEnrich    bool
	noRDNS      bool
	noASN       bool
	noGeoIP     bool
	noColor     bool
	logLevel    string

	// Config file
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hoptrace [flags] <destination>",
	Short: "Hop-by-hop network path tracer",
	Long: `hoptrace - hop-by-hop network path tracer

hoptrace sends one ICMP echo probe per TTL and prints each hop as it
answers. The run stops when the destination answers, when the hop limit
is reached, or after a run of consecutive timeouts, which usually means
the destination is unreachable or filtered.

Exit status:
  0    destination reached, or hop limit reached
  1    unresolvable destination, invalid flags or configuration, probe error
  2    aborted after too many consecutive timeouts
  130  interrupted

Examples:
  hoptrace example.com              Basic trace
  hoptrace -m 20 --max-timeouts 3   Tighter limits
  hoptrace -v example.com           Verbose table output
  hoptrace --json example.com       JSON output
  hoptrace --tui example.com        Interactive TUI mode
  hoptrace config --init            Create a config file
  hoptrace                          Interactive mode (prompts for destination)`,
	Args:              cobra.MaximumNArgs(1),
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runTrace,
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.config/hoptrace/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level: trace, debug, info, warn, error, disabled")

	// Trace parameters
	rootCmd.Flags().IntVarP(&maxHops, "max-hops", "m", 0, "Maximum number of hops (TTL ceiling)")
	rootCmd.Flags().IntVar(&maxTimeouts, "max-timeouts", 0, "Abort after this many consecutive timeouts")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "w", 0, "Probe timeout")

	// Network settings
	rootCmd.Flags().BoolVarP(&forceIPv4, "ipv4", "4", false, "Use IPv4 only")
	rootCmd.Flags().BoolVarP(&forceIPv6, "ipv6", "6", false, "Use IPv6 only")

	// Output flags
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed table output")
	rootCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.Flags().BoolVar(&csvOutput, "csv", false, "Output in CSV format")
	rootCmd.Flags().BoolVarP(&tuiMode, "tui", "t", false, "Interactive TUI mode")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Enrichment flags
	rootCmd.Flags().BoolVar(&noEnrich, "no-enrich", false, "Disable all enrichment")
	rootCmd.Flags().BoolVar(&noRDNS, "no-rdns", false, "Disable reverse DNS lookups")
	rootCmd.Flags().BoolVar(&noASN, "no-asn", false, "Disable ASN lookups")
	rootCmd.Flags().BoolVar(&noGeoIP, "no-geoip", false, "Disable GeoIP lookups")

	rootCmd.MarkFlagsMutuallyExclusive("json", "csv", "tui")
	rootCmd.MarkFlagsMutuallyExclusive("ipv4", "ipv6")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the configuration file, applies it to unset flags and
// attaches the diagnostic logger to the command context.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error

	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyConfigDefaults(cmd)

	log, err := logger.New(logger.Options{Level: logLevel, NoColor: noColor})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(log.WithContext(ctx))

	if path := cfg.Path(); path != "" {
		log.Debug().Str("path", path).Msg("loaded config")
	}
	return nil
}

// applyConfigDefaults applies config file values for unset flags.
func applyConfigDefaults(cmd *cobra.Command) {
	if cfg == nil {
		return
	}

	defaults := cfg.Defaults
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	// Output mode from config (if no flag set)
	if !changed("tui") && defaults.TUI {
		tuiMode = true
	}
	if !changed("verbose") && defaults.Verbose {
		verbose = true
	}
	if !changed("json") && defaults.JSON {
		jsonOutput = true
	}
	if !changed("csv") && defaults.CSV {
		csvOutput = true
	}
	if !changed("no-color") && defaults.NoColor {
		noColor = true
	}
	if !changed("log-level") {
		logLevel = defaults.LogLevel
	}

	// Trace parameters from config
	if !changed("max-hops") {
		maxHops = orDefault(defaults.MaxHops, trace.DefaultMaxHops)
	}
	if !changed("max-timeouts") {
		maxTimeouts = orDefault(defaults.MaxTimeouts, trace.DefaultMaxConsecutiveTimeouts)
	}
	if !changed("timeout") {
		timeout = defaults.Timeout
		if timeout <= 0 {
			timeout = trace.DefaultTimeout
		}
	}

	// Network settings from config
	if !changed("ipv4") && !changed("ipv6") {
		forceIPv4 = forceIPv4 || defaults.IPv4
		forceIPv6 = forceIPv6 || defaults.IPv6
	}

	// Enrichment from config
	if !changed("no-enrich") && !defaults.Enrichment.Enabled {
		noEnrich = true
	}
	if !changed("no-rdns") && !defaults.Enrichment.RDNS {
		noRDNS = true
	}
	if !changed("no-asn") && !defaults.Enrichment.ASN {
		noASN = true
	}
	if !changed("no-geoip") && !defaults.Enrichment.GeoIP {
		noGeoIP = true
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// buildTraceConfig turns the effective flag values into a trace configuration.
func buildTraceConfig() *trace.Config {
	traceConfig := trace.DefaultConfig()
	traceConfig.MaxHops = maxHops
	traceConfig.MaxConsecutiveTimeouts = maxTimeouts
	traceConfig.Timeout = timeout
	traceConfig.IPv4 = forceIPv4
	traceConfig.IPv6 = forceIPv6

	traceConfig.EnableEnrichment = !noEnrich
	traceConfig.EnableRDNS = !noRDNS && !noEnrich
	traceConfig.EnableASN = !noASN && !noEnrich
	traceConfig.EnableGeoIP = !noGeoIP && !noEnrich

	return traceConfig
}

// outputFormat returns the format selected by the output flags.
func outputFormat() output.Format {
	switch {
	case jsonOutput:
		return output.FormatJSON
	case csvOutput:
		return output.FormatCSV
	case verbose:
		return output.FormatVerbose
	default:
		return output.FormatText
	}
}

// outcomeError converts a finished trace into the error main maps to an
// exit code.
func outcomeError(result *trace.Result, err error) error {
	if err != nil {
		return err
	}
	if result != nil && result.State == trace.StateAborted {
		return errAborted
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "hoptrace %s\n", version)
		fmt.Fprintf(out, "  Commit: %s\n", commit)
		fmt.Fprintf(out, "  Built:  %s\n", date)
		fmt.Fprintf(out, "  Config: %s\n", config.GetConfigPath())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage the hoptrace configuration file.

Commands:
  hoptrace config --init     Create a commented config file
  hoptrace config --show     Show the effective configuration
  hoptrace config --path     Show the config file path`,
	RunE: runConfig,
}

var (
	configInit bool
	configShow bool
	configPath bool
)

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Create default config file")
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show current configuration")
	configCmd.Flags().BoolVar(&configPath, "path", false, "Show config file path")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if configPath {
		path := config.GetConfigPath()
		if cfg != nil && cfg.Path() != "" {
			path = cfg.Path()
		}
		fmt.Fprintln(out, path)
		return nil
	}

	if configInit {
		path := config.GetConfigPath()
		if path == "" {
			return errors.New("cannot determine user config directory")
		}
		if err := config.WriteExample(path); err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}

		fmt.Fprintf(out, "Created config file: %s\n", path)
		fmt.Fprintln(out, "\nEdit this file to customize defaults.")
		fmt.Fprintln(out, "Example: Set 'max_timeouts: 3' under 'defaults:' to give up sooner.")
		return nil
	}

	if configShow {
		if cfg == nil {
			cfg = config.DefaultConfig()
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		if path := cfg.Path(); path != "" {
			fmt.Fprintf(out, "# %s\n", path)
		} else {
			fmt.Fprintln(out, "# built-in defaults (no config file found)")
		}
		_, err = out.Write(data)
		return err
	}

	// No flag specified, show help
	return cmd.Help()
}

func runTrace(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := zerolog.Ctx(ctx)

	var target string

	// If no target provided, prompt for it interactively
	if len(args) == 0 {
		var err error
		target, err = promptForTarget(ctx, os.Stdin, os.Stdout, cfg.Aliases)
		if err != nil {
			return err
		}
	} else {
		target = args[0]
	}

	// Flags are valid from here on; usage is only printed again for
	// resolution failures.
	cmd.SilenceUsage = true

	if resolved := cfg.ResolveAlias(target); resolved != target {
		log.Debug().Str("alias", target).Str("target", resolved).Msg("expanded alias")
		target = resolved
	}

	traceConfig := buildTraceConfig()
	if err := traceConfig.Validate(); err != nil {
		return err
	}

	var opts []trace.Option
	enricher, err := newEnricher(ctx, traceConfig)
	if err != nil {
		return err
	}
	if enricher != nil {
		defer enricher.Close()
		opts = append(opts, trace.WithEnricher(enricher))
	}

	tracer, err := trace.New(traceConfig, opts...)
	if probe.IsPermissionError(err) {
		return fmt.Errorf("%w (run as root, or allow unprivileged ICMP via the net.ipv4.ping_group_range sysctl)", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	defer tracer.Close()

	outputConfig := output.ColorsFor(os.Stdout, output.Config{
		NoHostname: !traceConfig.EnableRDNS,
		NoASN:      !traceConfig.EnableASN,
		NoGeoIP:    !traceConfig.EnableGeoIP,
	}, noColor)

	if tuiMode {
		return runTUI(ctx, tracer, target, traceConfig, outputConfig)
	}

	sink := output.NewSink(outputFormat(), outputConfig, os.Stdout)

	result, err := tracer.Trace(ctx, target, sink)
	if errors.Is(err, trace.ErrInterrupted) {
		sink.Interrupted(result)
	}
	if werr := sink.Err(); werr != nil && err == nil {
		err = fmt.Errorf("failed to write output: %w", werr)
	}

	return outcomeError(result, err)
}

// runTUI runs the trace in the interactive view and prints the final text
// report once the view closes.
func runTUI(ctx context.Context, tracer *trace.Tracer, target string, traceConfig *trace.Config, outputConfig output.Config) error {
	result, err := tui.Run(ctx, tracer, target, tui.Options{
		NoColor:                noColor,
		MaxConsecutiveTimeouts: traceConfig.MaxConsecutiveTimeouts,
	})

	if result != nil {
		data, ferr := output.NewTextFormatter(outputConfig).Format(result)
		if ferr == nil {
			_, _ = os.Stdout.Write(data)
		}
	}

	return outcomeError(result, err)
}

// newEnricher builds the hop enricher for traceConfig, or nil when every
// lookup is disabled. MaxMind databases that fail to open are skipped in
// favor of the online services.
func newEnricher(ctx context.Context, traceConfig *trace.Config) (*enrich.Enricher, error) {
	enricherConfig := enrich.ConfigFromTrace(traceConfig)
	if !enricherConfig.Enabled() {
		return nil, nil
	}

	if cfg != nil {
		enricherConfig.MaxMindASNPath, enricherConfig.MaxMindCityPath = cfg.MaxMindPaths()
	}

	enricher, err := enrich.NewEnricher(enricherConfig)
	if err == nil {
		return enricher, nil
	}

	zerolog.Ctx(ctx).Warn().Err(err).Msg("MaxMind databases unavailable, falling back to online lookups")
	enricherConfig.MaxMindASNPath = ""
	enricherConfig.MaxMindCityPath = ""
	return enrich.NewEnricher(enricherConfig)
}

// promptForTarget displays an interactive prompt for the user to enter a
// destination. It gives up when ctx is cancelled.
func promptForTarget(ctx context.Context, in io.Reader, out io.Writer, aliases map[string]string) (string, error) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	fmt.Fprintln(out)
	cyan.Fprintln(out, "hoptrace - hop-by-hop network path tracer")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "  Examples:")
	yellow.Fprintln(out, "    • example.com     - Trace to a hostname")
	yellow.Fprintln(out, "    • 192.0.2.1       - Trace to an IPv4 address")
	yellow.Fprintln(out, "    • 2001:db8::1     - Trace to an IPv6 address")
	fmt.Fprintln(out)

	if len(aliases) > 0 {
		names := make([]string, 0, len(aliases))
		for name := range aliases {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(out, "  Aliases:")
		for _, name := range names {
			yellow.Fprintf(out, "    • %s → %s\n", name, aliases[name])
		}
		fmt.Fprintln(out)
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- fmt.Errorf("failed to read input: %w", err)
			return
		}
		readErr <- errors.New("no input provided")
	}()

	for {
		green.Fprint(out, "  Enter destination (IP or hostname): ")

		var input string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return "", ctx.Err()
		case err := <-readErr:
			fmt.Fprintln(out)
			return "", err
		case input = <-lines:
		}

		target := strings.TrimSpace(input)

		if target == "" {
			red.Fprintln(out, "  ✗ Destination cannot be empty. Please try again.")
			fmt.Fprintln(out)
			continue
		}

		if target == "q" || target == "quit" || target == "exit" {
			fmt.Fprintln(out, "  Goodbye!")
			return "", errQuit
		}

		fmt.Fprintln(out)
		return target, nil
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets version information for the CLI.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}
