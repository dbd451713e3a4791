package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lexandro/codesync/ignore"
	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/project"
	"github.com/lexandro/codesync/register"
	"github.com/lexandro/codesync/selector"
	"github.com/lexandro/codesync/server"
	"github.com/lexandro/codesync/tools"
	"github.com/lexandro/codesync/watcher"
)

const defaultAddr = "127.0.0.1:8000"

// globalOptions are shared by every subcommand.
type globalOptions struct {
	rootDir    string
	ignoreFile string
	logLevel   string
	logFile    string
}

type serveOptions struct {
	addr         string
	maxFileSize  int64
	excludes     []string
	useGitignore bool
	syncInterval time.Duration
	execTimeout  time.Duration
	eventTimeout time.Duration
	noSearch     bool
	noExec       bool
	runSelect    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var global globalOptions
	var serve serveOptions

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Index the project and serve the file API, change stream and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), global, serve)
		},
	}
	flags := serveCmd.Flags()
	flags.StringVar(&serve.addr, "addr", defaultAddr, "HTTP listen address")
	flags.Int64Var(&serve.maxFileSize, "max-file-size", ignore.DefaultMaxFileSizeBytes, "Maximum indexed file size in bytes")
	flags.StringArrayVar(&serve.excludes, "exclude", nil, "Extra ignore pattern (repeatable)")
	flags.BoolVar(&serve.useGitignore, "gitignore", false, "Also honor the root .gitignore")
	flags.DurationVar(&serve.syncInterval, "sync-interval", time.Minute, "Periodic index verification interval (0 disables)")
	flags.DurationVar(&serve.execTimeout, "exec-timeout", server.DefaultExecTimeout, "Wall-clock limit for /api/exec commands")
	flags.DurationVar(&serve.eventTimeout, "event-timeout", server.DefaultEventTimeout, "Idle time before a stream keep-alive")
	flags.BoolVar(&serve.noSearch, "no-search", false, "Disable the full-text content index")
	flags.BoolVar(&serve.noExec, "no-exec", false, "Disable /api/exec")
	flags.BoolVar(&serve.runSelect, "select", false, "Run the interactive exclusion selector before serving")

	rootCmd := &cobra.Command{
		Use:   "codesync",
		Short: "codesync serves a live, filtered index of a project directory",
		Long: `codesync keeps an in-memory index of the eligible files under a project root,
follows filesystem changes with a watcher and streams every index change to
subscribers over server-sent events or WebSocket. The same index backs a JSON
file API and a set of MCP tools.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         serveCmd.RunE,
	}
	rootCmd.Flags().AddFlagSet(flags)

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&global.rootDir, "root", "", "Project root directory (default: current working directory)")
	persistent.StringVar(&global.ignoreFile, "ignore-file", "", "Ignore selection file (default: <root>/"+ignore.DefaultConfigFileName+")")
	persistent.StringVar(&global.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	persistent.StringVar(&global.logFile, "log-file", "", "Log file path (default: stderr)")

	selectCmd := &cobra.Command{
		Use:   "select",
		Short: "Interactively choose excluded files and folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rootDir, err := resolveRoot(global.rootDir)
			if err != nil {
				return err
			}
			_, err = runSelector(rootDir, configPath(rootDir, global.ignoreFile))
			return err
		},
	}

	var registerAddr, registerName string
	registerCmd := &cobra.Command{
		Use:   "register <project|user> [directory]",
		Short: "Add the codesync MCP endpoint to a client config",
		Long: `Writes an HTTP MCP server entry for this server.

  project  writes <directory>/.mcp.json (default directory: .)
  user     writes ~/.claude.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := register.ParseScope(args[0])
			if err != nil {
				return err
			}
			options := register.Options{Scope: scope, ServerName: registerName, Addr: registerAddr}
			if len(args) == 2 {
				if scope != register.ScopeProject {
					return fmt.Errorf("a directory is only accepted for the project scope")
				}
				options.Directory = args[1]
			}
			configFile, err := register.Run(options)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %q in %s\n", registerName, configFile)
			return nil
		},
	}
	registerCmd.Flags().StringVar(&registerAddr, "addr", defaultAddr, "Address the server listens on")
	registerCmd.Flags().StringVar(&registerName, "name", register.DeriveServerName(os.Args[0]), "MCP server name")

	rootCmd.AddCommand(serveCmd, selectCmd, registerCmd)
	return rootCmd
}

func runServe(ctx context.Context, global globalOptions, serve serveOptions) error {
	rootDir, err := resolveRoot(global.rootDir)
	if err != nil {
		return err
	}
	logger := setupLogger(global.logLevel, global.logFile)
	ignorePath := configPath(rootDir, global.ignoreFile)

	if serve.runSelect {
		if _, err := runSelector(rootDir, ignorePath); err != nil && !errors.Is(err, selector.ErrNotTerminal) {
			return err
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting codesync",
		"root", rootDir,
		"addr", serve.addr,
		"maxFileSize", serve.maxFileSize,
		"ignoreFile", ignorePath,
	)
	startTime := time.Now()

	cfg, found, err := ignore.LoadConfig(ignorePath)
	if err != nil {
		return err
	}
	if !found {
		cfg = ignore.DefaultConfig()
	}
	cfg = cfg.WithDefaultPatterns().WithPatterns(serve.excludes...)

	matcher := ignore.NewMatcher(ignore.MatcherOptions{
		RootDir:          rootDir,
		Config:           cfg,
		MaxFileSizeBytes: serve.maxFileSize,
		UseGitignore:     serve.useGitignore,
	})

	p, err := project.New(project.Options{RootDir: rootDir, Matcher: matcher, Logger: logger})
	if err != nil {
		return err
	}
	if _, err := p.Rescan(ctx); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	fileWatcher, err := watcher.NewWatcher(rootDir, p.Index(), matcher, p.Hub(), logger)
	watching := err == nil
	if err != nil {
		logger.Warn("failed to start file watcher, continuing without live updates", "error", err)
	} else {
		defer fileWatcher.Close()
		go fileWatcher.Run(ctx)
	}

	var contentIndex *index.ContentIndex
	var indexer *contentIndexer
	if !serve.noSearch {
		contentIndex, err = index.NewContentIndex()
		if err != nil {
			return fmt.Errorf("creating content index: %w", err)
		}
		defer contentIndex.Close()

		indexer = &contentIndexer{project: p, content: contentIndex, logger: logger}
		// Subscribe before populating so no change is missed in between.
		sub := p.Subscribe()
		go func() {
			count := indexer.populate(ctx)
			logger.Info("content index built", "files", count, "duration", time.Since(startTime))
			indexer.run(ctx, sub)
		}()
	}

	if serve.syncInterval > 0 {
		go runPeriodicSync(ctx, serve.syncInterval, p, logger)
	}

	handlers := server.ToolHandlers{
		Files: &tools.FilesHandler{FileIndex: p.Index(), Logger: logger},
		Read:  &tools.ReadHandler{Reader: p, Logger: logger},
		Status: &tools.StatusHandler{
			FileIndex:    p.Index(),
			ContentIndex: contentIndex,
			Hub:          p.Hub(),
			StartTime:    startTime,
			RootDir:      rootDir,
			Logger:       logger,
		},
		Reindex: &tools.ReindexHandler{
			Logger: logger,
			DoReindex: func(ctx context.Context) (index.ScanResult, error) {
				// Reload ignore rules in case .gitignore changed
				matcher.Reload()
				result, err := p.Rescan(ctx)
				if err != nil {
					return result, err
				}
				if indexer != nil {
					indexer.populate(ctx)
				}
				return result, nil
			},
		},
	}
	if contentIndex != nil {
		handlers.Search = &tools.SearchHandler{ContentIndex: contentIndex, Logger: logger}
	}

	srv := server.New(server.Options{
		Project:      p,
		Content:      contentIndex,
		MCP:          server.NewMCPHandler(server.NewMCPServer(handlers)),
		EventTimeout: serve.eventTimeout,
		ExecTimeout:  serve.execTimeout,
		DisableExec:  serve.noExec,
		Watching:     watching,
		Logger:       logger,
	})

	printBanner(rootDir, serve.addr, p.Index().FileCount(), watching)
	logger.Info("http server listening", "addr", serve.addr)
	if err := srv.ListenAndServe(ctx, serve.addr); err != nil {
		logger.Error("http server error", "error", err)
		return err
	}
	logger.Info("codesync stopped")
	return nil
}

// runSelector runs the interactive selector and saves the result on finish.
func runSelector(rootDir, ignorePath string) (bool, error) {
	cfg, found, err := ignore.LoadConfig(ignorePath)
	if err != nil {
		return false, err
	}
	if !found {
		cfg = ignore.DefaultConfig()
	}

	selected, state, err := selector.Run(rootDir, cfg.WithDefaultPatterns(), os.Stdin, os.Stdout)
	if err != nil {
		return false, err
	}
	if state != selector.Finished {
		fmt.Println(color.YellowString("Selection cancelled, nothing saved"))
		return false, nil
	}

	if err := ignore.SaveConfig(ignorePath, selected); err != nil {
		fmt.Println(color.RedString("Failed to save ignore config: %v", err))
		return false, err
	}
	fmt.Println(color.GreenString("Saved ignore config to %s", ignorePath))
	return true, nil
}

func resolveRoot(rootDir string) (string, error) {
	if rootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		rootDir = wd
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return "", fmt.Errorf("resolving root %s: %w", rootDir, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return "", fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", absRoot)
	}
	return absRoot, nil
}

func configPath(rootDir, ignoreFile string) string {
	if ignoreFile != "" {
		return ignoreFile
	}
	return filepath.Join(rootDir, ignore.DefaultConfigFileName)
}

func printBanner(rootDir, addr string, files int, watching bool) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	watch := green("on")
	if !watching {
		watch = yellow("off")
	}
	fmt.Fprintln(os.Stderr, cyan("codesync"), "serving", rootDir)
	fmt.Fprintf(os.Stderr, "  files:  %d\n", files)
	fmt.Fprintf(os.Stderr, "  watch:  %s\n", watch)
	fmt.Fprintf(os.Stderr, "  http:   %s\n", green("http://"+addr))
	fmt.Fprintf(os.Stderr, "  mcp:    %s\n", green(register.MCPURL(addr)))
}

// setupLogger creates an slog.Logger writing to stderr or a file.
func setupLogger(level string, logFile string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var writer *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
			writer = os.Stderr
		} else {
			writer = f
		}
	} else {
		writer = os.Stderr
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
