// Command webseek manages persistent browser sessions and searches
// content platforms through them.
//
// Usage:
//
//	webseek -mcp                                  # serve MCP tools on stdio
//	webseek -setup -platform zhihu                # open a session, wait for login
//	webseek -search "rust async" -platform zhihu  # one-shot search
//	webseek -read https://... -platform zhihu     # one-shot page read
//	webseek -list-states                          # saved browser states
//	webseek -clear-state -platform zhihu
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/webseek/crawl"
	"github.com/hazyhaar/webseek/logindetect"
	"github.com/hazyhaar/webseek/platform"
	"github.com/hazyhaar/webseek/session"
	"github.com/hazyhaar/webseek/statestore"
)

func main() {
	configPath := flag.String("config", "", "path to webseek.yaml config file")
	platformName := flag.String("platform", "general", "platform: zhihu, wechat or general")
	setup := flag.Bool("setup", false, "open a browser session and wait for login")
	checkLogin := flag.Bool("check-login", false, "classify the platform's login state")
	searchQuery := flag.String("search", "", "run a one-shot search for a query")
	readURL := flag.String("read", "", "read one page and print its main text")
	listStates := flag.Bool("list-states", false, "list saved browser states")
	clearState := flag.Bool("clear-state", false, "delete the platform's saved state")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools on stdio")
	maxPages := flag.Int("max-pages", 0, "result pages to crawl (0 = config default)")
	minRelevance := flag.Float64("min-relevance", -1, "relevance threshold in [0,1]; 0 keeps everything, negative = config default")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	// Local overrides live in .env; absence is fine.
	_ = godotenv.Load()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, logger, runArgs{
		configPath:   *configPath,
		platform:     *platformName,
		setup:        *setup,
		checkLogin:   *checkLogin,
		searchQuery:  *searchQuery,
		readURL:      *readURL,
		listStates:   *listStates,
		clearState:   *clearState,
		serveMCP:     *serveMCP,
		maxPages:     *maxPages,
		minRelevance: *minRelevance,
	})
	if err != nil {
		logger.Error("webseek: fatal", "error", err)
		os.Exit(1)
	}
}

type runArgs struct {
	configPath   string
	platform     string
	setup        bool
	checkLogin   bool
	searchQuery  string
	readURL      string
	listStates   bool
	clearState   bool
	serveMCP     bool
	maxPages     int
	minRelevance float64
}

func run(ctx context.Context, logger *slog.Logger, args runArgs) error {
	cfg, err := loadConfig(args.configPath)
	if err != nil {
		return err
	}

	store, err := statestore.Open(cfg.StateDB)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	// State-only modes never touch the browser.
	switch {
	case args.listStates:
		return printStates(ctx, store)
	case args.clearState:
		p, ok := platform.Parse(args.platform)
		if !ok {
			return fmt.Errorf("unknown platform %q", args.platform)
		}
		if err := store.Clear(ctx, p); err != nil {
			return err
		}
		fmt.Printf("state cleared for %s\n", p)
		return nil
	}

	cfg.Browser.Logger = logger
	mgr := session.New(store, cfg.Browser)
	defer func() {
		if err := mgr.Cleanup(); err != nil {
			logger.Warn("webseek: cleanup", "error", err)
		}
	}()

	if args.serveMCP {
		return serveStdio(ctx, mgr, cfg.crawlOptions())
	}

	p, ok := platform.Parse(args.platform)
	if !ok {
		return fmt.Errorf("unknown platform %q", args.platform)
	}

	switch {
	case args.setup:
		return runSetup(ctx, mgr, p, cfg.Session)
	case args.checkLogin:
		return runCheckLogin(ctx, mgr, p, cfg.Session)
	case args.searchQuery != "":
		return runSearch(ctx, mgr, p, cfg, args)
	case args.readURL != "":
		return runRead(ctx, mgr, p, cfg, args.readURL)
	}

	flag.Usage()
	return fmt.Errorf("no mode selected")
}

func serveStdio(ctx context.Context, mgr *session.Manager, opts crawl.Options) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "webseek",
		Version: "1.0.0",
	}, nil)
	mgr.RegisterMCP(srv)
	crawl.RegisterMCP(srv, func(p platform.Platform) (crawl.Pager, bool) {
		s, ok := mgr.Get(p)
		if !ok {
			return nil, false
		}
		return s, true
	}, opts)

	return srv.Run(ctx, &mcp.StdioTransport{})
}

// runSetup opens a session and, when the platform needs an account,
// waits for a human to log in through the visible window.
func runSetup(ctx context.Context, mgr *session.Manager, p platform.Platform, opts session.Options) error {
	s, err := mgr.Setup(ctx, p, opts)
	if err != nil {
		return err
	}

	if !s.Profile.RequiresLogin {
		fmt.Printf("session ready for %s\n", p)
		return nil
	}

	if st := logindetect.Detect(ctx, s, s.Profile); st == logindetect.LoggedIn {
		fmt.Printf("session ready for %s (already logged in)\n", p)
		return nil
	}

	fmt.Printf("log in to %s in the browser window...\n", s.Profile.Name)
	if _, err := logindetect.Await(ctx, s, s.Profile, logindetect.AwaitOptions{}); err != nil {
		return fmt.Errorf("waiting for login: %w", err)
	}
	if err := mgr.SaveState(ctx, p); err != nil {
		return fmt.Errorf("save state after login: %w", err)
	}
	fmt.Printf("logged in, state saved for %s\n", p)
	return nil
}

func runCheckLogin(ctx context.Context, mgr *session.Manager, p platform.Platform, opts session.Options) error {
	s, err := mgr.Setup(ctx, p, opts)
	if err != nil {
		return err
	}
	st := logindetect.Detect(ctx, s, s.Profile)
	fmt.Printf("%s: %s (%s)\n", p, st, s.CurrentURL())
	return nil
}

func runSearch(ctx context.Context, mgr *session.Manager, p platform.Platform, cfg *fileConfig, args runArgs) error {
	s, err := mgr.Setup(ctx, p, cfg.Session)
	if err != nil {
		return err
	}
	prof, _ := platform.Describe(p)
	eng := crawl.New(s, prof, cfg.crawlOptions())

	out, err := eng.Search(ctx, args.searchQuery, args.maxPages, args.minRelevance)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func runRead(ctx context.Context, mgr *session.Manager, p platform.Platform, cfg *fileConfig, url string) error {
	s, err := mgr.Setup(ctx, p, cfg.Session)
	if err != nil {
		return err
	}
	prof, _ := platform.Describe(p)
	eng := crawl.New(s, prof, cfg.crawlOptions())

	pc, err := eng.ReadPage(ctx, url)
	if err != nil {
		return err
	}
	return printJSON(pc)
}

func printStates(ctx context.Context, store *statestore.Store) error {
	infos, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("no saved states")
		return nil
	}
	for _, in := range infos {
		fmt.Printf("%-8s saved %s  %d cookies, %d storage keys\n",
			in.Platform, in.SavedAt.Format(time.RFC3339), in.CookieCount, in.LocalStorageCount)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
