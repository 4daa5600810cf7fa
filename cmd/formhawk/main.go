package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/formhawk/formhawk/pkg/formhawk"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool

	// Scan flags
	workers      int
	timeout      int
	rateLimit    float64
	outputFile   string
	format       string
	pretty       bool
	stream       bool
	stateFile    string
	targetsFile  string
	userAgent    string
	insecure     bool
	headerFlags  []string
	failOnHigh   bool

	// Analysis flags
	tokenPatterns    []string
	minTokenLength   int
	entropyThreshold float64
	mutatingVerbs    []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "formhawk",
		Short: "formhawk - Anti-CSRF form analyzer",
		Long: `formhawk - Analyze HTML forms for anti-CSRF token implementation.

Inspects fetched or local HTML documents, classifies each form as
state-changing or not, locates candidate anti-CSRF tokens (hidden inputs,
meta tags, header-carrying attributes), and reports per-form verdicts with
severity and rationale. Detection only: it never submits forms or attempts
to bypass protections.`,
		Version: version,
	}

	scanCmd := &cobra.Command{
		Use:   "scan [target...]",
		Short: "Scan one or more targets",
		Long: `Scan target URLs or local HTML files and report a verdict per form.

Exit code is 0 when no HIGH-severity findings were produced and 1 otherwise
(disable with --fail-on-high=false).`,
		Args: cobra.ArbitraryArgs,
		RunE: runScan,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	scanCmd.Flags().IntVarP(&workers, "workers", "w", 10, "Number of concurrent workers")
	scanCmd.Flags().IntVarP(&timeout, "timeout", "t", 15, "Request timeout in seconds")
	scanCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 10, "Requests per second")
	scanCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	scanCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	scanCmd.Flags().BoolVar(&pretty, "pretty", true, "Pretty-print JSON output")
	scanCmd.Flags().BoolVar(&stream, "stream", false, "Stream JSON results as they arrive")
	scanCmd.Flags().StringVar(&stateFile, "state-file", "", "Report store for resumable batch scans")
	scanCmd.Flags().StringVar(&targetsFile, "targets-file", "", "File with one target per line")
	scanCmd.Flags().StringVar(&userAgent, "user-agent", "", "Custom User-Agent")
	scanCmd.Flags().BoolVarP(&insecure, "insecure", "k", false, "Skip TLS certificate verification")
	scanCmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Custom header (Name: value), repeatable")
	scanCmd.Flags().BoolVar(&failOnHigh, "fail-on-high", true, "Exit non-zero on HIGH-severity findings")

	scanCmd.Flags().StringArrayVar(&tokenPatterns, "token-pattern", nil, "Token name pattern (substring), repeatable")
	scanCmd.Flags().IntVar(&minTokenLength, "min-token-length", 0, "Minimum acceptable token length (default 16)")
	scanCmd.Flags().Float64Var(&entropyThreshold, "entropy-threshold", 0, "Entropy threshold in bits/char (default 3.0)")
	scanCmd.Flags().StringArrayVar(&mutatingVerbs, "mutating-verb", nil, "Path verb marking a GET form state-changing, repeatable")

	rootCmd.AddCommand(scanCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	targets, err := collectTargets(args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no targets: pass URLs or file paths, or use --targets-file")
	}

	config := formhawk.DefaultConfig()
	if configFile != "" {
		config, err = formhawk.LoadFromFile(configFile)
		if err != nil {
			return err
		}
	}

	applyFlags(cmd, config)

	scanner, err := formhawk.New(formhawk.WithConfig(config))
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived interrupt signal, stopping...\n")
		cancel()
	}()

	result, err := scanner.Scan(ctx, targets)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if failOnHigh && result != nil && result.HasHighFindings() {
		os.Exit(result.ExitCode())
	}
	return nil
}

// applyFlags overlays command-line flags onto the configuration;
// command-line takes precedence over the config file.
func applyFlags(cmd *cobra.Command, config *formhawk.Config) {
	if cmd.Flags().Changed("workers") {
		config.Workers = workers
	}
	if cmd.Flags().Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if cmd.Flags().Changed("rate-limit") {
		config.RateLimit.RequestsPerSecond = rateLimit
	}
	if cmd.Flags().Changed("format") {
		config.Output.Format = format
	}
	if cmd.Flags().Changed("pretty") {
		config.Output.Pretty = pretty
	}
	if cmd.Flags().Changed("stream") {
		config.Output.Stream = stream
	}
	if outputFile != "" {
		config.Output.FilePath = outputFile
	}
	if stateFile != "" {
		config.State.FilePath = stateFile
	}
	if userAgent != "" {
		config.UserAgent = userAgent
	}
	if insecure {
		config.InsecureTLS = true
	}
	if len(headerFlags) > 0 {
		if config.Headers == nil {
			config.Headers = make(map[string]string)
		}
		for _, h := range headerFlags {
			if name, value, ok := strings.Cut(h, ":"); ok {
				config.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
			}
		}
	}

	if len(tokenPatterns) > 0 {
		config.Analysis.TokenNamePatterns = tokenPatterns
	}
	if minTokenLength > 0 {
		config.Analysis.MinTokenLength = minTokenLength
	}
	if entropyThreshold > 0 {
		config.Analysis.EntropyThreshold = entropyThreshold
	}
	if len(mutatingVerbs) > 0 {
		config.Analysis.MutatingPathVerbs = mutatingVerbs
	}

	config.Verbose = verbose
	config.Debug = debug
}

// collectTargets merges positional targets with --targets-file entries and
// validates URLs up front so an obvious typo fails before any fetching.
func collectTargets(args []string) ([]string, error) {
	targets := make([]string, 0, len(args))
	targets = append(targets, args...)

	if targetsFile != "" {
		f, err := os.Open(targetsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open targets file: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			targets = append(targets, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read targets file: %w", err)
		}
	}

	for _, target := range targets {
		if err := validateTarget(target); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

// validateTarget accepts http(s) URLs with a host, or paths to readable
// local files.
func validateTarget(target string) error {
	if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if u.Host == "" {
			return fmt.Errorf("invalid URL %q: missing host", target)
		}
		return nil
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target %q is neither a valid URL nor a readable file", target)
	}
	return nil
}
