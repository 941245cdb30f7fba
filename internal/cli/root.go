// Package cli wires the crawlcore library into a runnable command,
// following the teacher corpus's cobra root-command shape. The CLI is
// ambient, not part of the core: it is the "caller" that sits outside
// the engine per spec §6.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/crawlcore/baseuri"
	"github.com/rohmanhakim/crawlcore/crawllog"
	"github.com/rohmanhakim/crawlcore/crawlconfig"
	"github.com/rohmanhakim/crawlcore/engine"
	"github.com/rohmanhakim/crawlcore/internal/build"
	"github.com/rohmanhakim/crawlcore/pagesink"
	"github.com/rohmanhakim/crawlcore/queue"
	"github.com/rohmanhakim/crawlcore/robotspolicy"
)

var (
	cfgFile      string
	seedURLs     []string
	maxDepth     int
	maxRequests  int
	concurrency  int
	requestDelay time.Duration
	userAgent    string
	outputDir    string
	verbose      bool
	showVersion  bool
)

// RootCmd is the crawlcore command.
var RootCmd = &cobra.Command{
	Use:   "crawlcore",
	Short: "A polite, extensible web crawl engine.",
	Long: `crawlcore runs the core crawl engine against a set of seed URLs,
enforcing concurrency, depth and politeness limits while delegating every
request/content decision to its registered subscribers.`,
	RunE: run,
}

func init() {
	RootCmd.Flags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	RootCmd.Flags().StringSliceVar(&seedURLs, "seed-url", nil, "seed URL to crawl (repeatable)")
	RootCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum hop distance from a seed (0 = unbounded)")
	RootCmd.Flags().IntVar(&maxRequests, "max-requests", 0, "maximum number of requests to issue (0 = unbounded)")
	RootCmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum concurrent in-flight requests")
	RootCmd.Flags().DurationVar(&requestDelay, "request-delay", 0, "minimum delay between request starts")
	RootCmd.Flags().StringVar(&userAgent, "user-agent", "crawlcore/1.0", "User-Agent header sent with every request")
	RootCmd.Flags().StringVar(&outputDir, "output-dir", "", "directory to write rendered Markdown pages into (empty disables writing)")
	RootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	RootCmd.Flags().BoolVar(&showVersion, "version", false, "print the version and exit")
}

func run(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Println(build.FullVersion())
		return nil
	}

	bases, err := baseuri.New(seedURLs...)
	if err != nil {
		return fmt.Errorf("invalid seed url: %w", err)
	}

	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := crawllog.NewSlog(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), "crawlcore")
	cfg = cfg.WithLogger(logger)

	q := queue.NewMemoryQueue()
	e, cerr := engine.Create(bases, q, nil)
	if cerr != nil {
		return cerr
	}

	e = e.
		WithUserAgent(cfg.UserAgent()).
		WithMaxDepth(cfg.MaxDepth()).
		WithMaxRequests(cfg.MaxRequests()).
		WithConcurrency(cfg.Concurrency()).
		WithRequestDelay(cfg.RequestDelay()).
		WithLogger(cfg.Logger())

	e.AddSubscriber(robotspolicy.New(cfg.UserAgent(), cfg.Logger(), nil))
	e.AddSubscriber(pagesink.New(outputDir, cfg.Logger()))

	return e.Crawl(context.Background())
}

// InitConfigWithError builds a crawlconfig.Config from the registered
// flags, or from --config-file when set. It is the CLI's "caller"
// assembly step (spec §6) split out from run so it can be exercised
// without performing a real crawl.
func InitConfigWithError() (crawlconfig.Config, error) {
	if cfgFile != "" {
		return crawlconfig.WithConfigFile(cfgFile)
	}

	cb := crawlconfig.WithDefault()
	if userAgent != "" {
		cb = cb.WithUserAgent(userAgent)
	}
	if maxDepth > 0 {
		cb = cb.WithMaxDepth(maxDepth)
	}
	if maxRequests > 0 {
		cb = cb.WithMaxRequests(maxRequests)
	}
	if concurrency > 0 {
		cb = cb.WithConcurrency(concurrency)
	}
	if requestDelay > 0 {
		cb = cb.WithRequestDelay(requestDelay)
	}
	return cb.Build()
}

// ResetFlags restores every package-level flag variable to its zero
// value. Tests call this between cases since the flag variables are
// package state shared across the whole test binary.
func ResetFlags() {
	cfgFile = ""
	seedURLs = nil
	maxDepth = 0
	maxRequests = 0
	concurrency = 0
	requestDelay = 0
	userAgent = ""
	outputDir = ""
	verbose = false
	showVersion = false
}

func SetConfigFileForTest(path string)       { cfgFile = path }
func SetSeedURLsForTest(urls []string)       { seedURLs = urls }
func SetMaxDepthForTest(depth int)           { maxDepth = depth }
func SetMaxRequestsForTest(n int)            { maxRequests = n }
func SetConcurrencyForTest(n int)            { concurrency = n }
func SetRequestDelayForTest(d time.Duration) { requestDelay = d }
func SetUserAgentForTest(agent string)       { userAgent = agent }
func SetOutputDirForTest(dir string)         { outputDir = dir }
func SetVerboseForTest(v bool)               { verbose = v }

// Execute runs the CLI, exiting non-zero on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
