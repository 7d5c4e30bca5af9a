// txrecover — recovers lost translation values from locale files, git
// history, and the source code that referenced them.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/i18nkit/txrecover/config"
	"github.com/i18nkit/txrecover/gitlog"
	"github.com/i18nkit/txrecover/i18n"
	"github.com/i18nkit/txrecover/localestore"
	"github.com/i18nkit/txrecover/oplock"
	"github.com/i18nkit/txrecover/recovery"
	"github.com/i18nkit/txrecover/snapshot"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "txrecover",
		Short: "Recover lost translation values from git history and source code",
		Long: `txrecover — translation value recovery engine.

Mines the workspace for translation values that were lost or emptied:
current locale files, sibling locales, the git history of every locale
file, and finally the source files where the key's translation call was
introduced (the removed lines of that commit usually carry the original
text).

Commands:
  status       Show detected workspace layout and history availability
  recover      Recover the value of a single key
  batch        Recover many keys in one pass
  clear-cache  Drop memoized history and session results
  version      Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Workspace root directory")

	root.AddCommand(
		newStatusCmd(),
		newRecoverCmd(),
		newBatchCmd(),
		newClearCacheCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("txrecover version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Workspace wiring shared by the commands
// ---------------------------------------------------------------------------

// workspaceEnv bundles everything a recovery command needs.
type workspaceEnv struct {
	ws     *config.Workspace
	file   *config.File
	src    *gitlog.GitSource
	engine *recovery.Engine
	locks  *oplock.Manager
	hasGit bool
}

func setupWorkspace(ctx context.Context) (*workspaceEnv, error) {
	ws := config.Detect(rootDir)

	file, err := config.Load(ws.Root)
	if err != nil {
		return nil, err
	}
	file.Apply(ws)

	src := gitlog.NewGitSource(ws.Root)
	if file != nil && file.GitTimeoutSeconds > 0 {
		src.SetTimeout(time.Duration(file.GitTimeoutSeconds) * time.Second)
	}

	env := &workspaceEnv{
		ws:     ws,
		file:   file,
		src:    src,
		engine: recovery.NewEngine(ws.Root, src),
		locks:  oplock.NewManager(logWarning),
		// No .git directory means no history; skip the git probe entirely.
		hasGit: ws.HasGit && src.Available(ctx),
	}
	if !env.hasGit {
		logWarning("%s", i18n.T("no git repository found, history phases are disabled"))
	}
	return env, nil
}

// recoverOptions builds engine options from flags and the config file;
// flags win where both are set.
func (env *workspaceEnv) recoverOptions(daysBack, maxCommits, parallelism int, extractRef string, placeholders []string) recovery.Options {
	opts := recovery.Options{
		DaysBack:          daysBack,
		MaxCommits:        maxCommits,
		ExtractRef:        extractRef,
		KnownPlaceholders: placeholders,
		SourceDirs:        env.ws.SourceDirs,
		Parallelism:       parallelism,
	}
	if env.file != nil {
		if opts.DaysBack == 0 {
			opts.DaysBack = env.file.DaysBack
		}
		if opts.MaxCommits == 0 {
			opts.MaxCommits = env.file.MaxCommits
		}
		if opts.ExtractRef == "" {
			opts.ExtractRef = env.file.ExtractRef
		}
		if opts.Parallelism == 0 {
			opts.Parallelism = env.file.Parallelism
		}
	}
	return opts
}

func (env *workspaceEnv) defaultLocale() string {
	if env.file != nil && env.file.SourceLocale != "" {
		return env.file.SourceLocale
	}
	return "en"
}

// signalContext returns a context cancelled on the first SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning("Interrupted, finishing current phase...")
		cancel()
	}()

	return ctx, cancel
}

// ---------------------------------------------------------------------------
// status (read-only: workspace layout + history availability)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show detected workspace layout and history availability",
		Long: `Show auto-detected workspace structure: locale roots, locale files
per locale, source directories, and whether git history is available.
Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			runStatus(env)
			return nil
		},
	}
}

func runStatus(env *workspaceEnv) {
	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Workspace:"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	fmt.Fprintf(os.Stderr, "  Name:        %s\n", env.ws.Name)
	fmt.Fprintf(os.Stderr, "  Root:        %s\n", env.ws.Root)
	if len(env.ws.LocaleDirs) > 0 {
		fmt.Fprintf(os.Stderr, "  Locale dirs: %s\n", strings.Join(env.ws.LocaleDirs, ", "))
	} else {
		fmt.Fprintf(os.Stderr, "  Locale dirs: none detected\n")
	}
	if len(env.ws.SourceDirs) > 0 {
		fmt.Fprintf(os.Stderr, "  Sources:     %s\n", strings.Join(env.ws.SourceDirs, ", "))
	}
	gitDesc := colorGreen + "available" + colorReset
	if !env.hasGit {
		gitDesc = colorYellow + "not available (history phases disabled)" + colorReset
	}
	fmt.Fprintf(os.Stderr, "  Git history: %s\n", gitDesc)
	if env.file != nil {
		fmt.Fprintf(os.Stderr, "  Config:      %s\n", config.FileName)
	}

	files := localestore.Discover(env.ws.Root)
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr)
		logInfo("No locale files found under %s", env.ws.Root)
		return
	}

	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Locale files:"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	perLocale := make(map[string][]string)
	for _, f := range files {
		perLocale[f.Locale] = append(perLocale[f.Locale], f.RelativePath)
	}
	for _, locale := range env.ws.Locales {
		paths := perLocale[locale]
		fmt.Fprintf(os.Stderr, "  %-8s %d file(s)\n", locale, len(paths))
		for _, p := range paths {
			fmt.Fprintf(os.Stderr, "           %s\n", p)
		}
	}
	fmt.Fprintln(os.Stderr)
}

// ---------------------------------------------------------------------------
// recover (single key)
// ---------------------------------------------------------------------------

func newRecoverCmd() *cobra.Command {
	var (
		locale       string
		daysBack     int
		maxCommits   int
		extractRef   string
		placeholders string
		write        bool
	)

	cmd := &cobra.Command{
		Use:   "recover <key>",
		Short: "Recover the value of a single key",
		Long: `Recover the lost value of one translation key.

Phases run in order until one yields a trustworthy value: the current
locale files (target locale first, then siblings), the git history of
every locale file, and finally the source files where the key's
translation call was introduced.

Examples:
  # Recover a key for the default locale
  txrecover recover auth.errors.invalid_credentials

  # Recover for German, telling the engine the call site's placeholders
  txrecover recover greeting.hello --locale de --placeholders name

  # Check a pinned known-good commit before scanning history
  txrecover recover nav.home --extract-ref 3f9c2ab

  # Write the recovered value back into the locale file
  txrecover recover nav.home --write`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			if locale == "" {
				locale = env.defaultLocale()
			}

			ctx, cancel := signalContext()
			defer cancel()

			opts := env.recoverOptions(daysBack, maxCommits, 0, extractRef, splitList(placeholders))
			r := env.engine.Recover(ctx, locale, args[0], opts)
			if r == nil {
				logWarning("%s", i18n.T("nothing recovered"))
				os.Exit(1)
			}

			logSuccess("%s = %q", r.Key, r.Value)
			logInfo("source: %s", r.Source)

			if write {
				return writeRecovered(ctx, env, locale, map[string]*recovery.Result{r.Key: r})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "Target locale (default: source locale from config, else en)")
	cmd.Flags().IntVar(&daysBack, "days-back", 0, "History lookback window in days (default 90)")
	cmd.Flags().IntVar(&maxCommits, "max-commits", 0, "Commits examined per file (default 30)")
	cmd.Flags().StringVar(&extractRef, "extract-ref", "", "Known-good commit checked before history scanning")
	cmd.Flags().StringVar(&placeholders, "placeholders", "", "Call site's placeholder names (comma-separated)")
	cmd.Flags().BoolVar(&write, "write", false, "Write the recovered value back into the locale file")

	return cmd
}

// ---------------------------------------------------------------------------
// batch (many keys in one pass)
// ---------------------------------------------------------------------------

func newBatchCmd() *cobra.Command {
	var (
		locale      string
		keysFile    string
		daysBack    int
		maxCommits  int
		extractRef  string
		parallelism int
		write       bool
		wait        bool
		waitTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "batch [keys...]",
		Short: "Recover many keys in one pass",
		Long: `Recover many keys at once, visiting each locale file, commit, and
diff once for the whole set instead of once per key.

Keys come from the arguments, from --keys-file (one key per line,
blank lines and # comments skipped), or both.

Examples:
  # Recover three keys
  txrecover batch nav.home nav.about footer.contact

  # Recover every key listed in a file and write the results back
  txrecover batch --keys-file missing-keys.txt --write`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			if locale == "" {
				locale = env.defaultLocale()
			}

			keys := append([]string(nil), args...)
			if keysFile != "" {
				fromFile, err := readKeysFile(keysFile)
				if err != nil {
					return err
				}
				keys = append(keys, fromFile...)
			}
			if len(keys) == 0 {
				return errors.New("no keys given: pass them as arguments or via --keys-file")
			}

			ctx, cancel := signalContext()
			defer cancel()

			opts := env.recoverOptions(daysBack, maxCommits, parallelism, extractRef, nil)
			opts.OnProgress = func(resolved, total int) {
				logInfo("  resolved %d/%d", resolved, total)
			}

			var results map[string]*recovery.Result
			err = env.locks.WithLock(ctx, "batch-recover", fmt.Sprintf("%d keys for %s", len(keys), locale), wait, waitTimeout, func(ctx context.Context) error {
				results = env.engine.RecoverBatch(ctx, locale, keys, opts)
				return nil
			})
			if err != nil {
				if errors.Is(err, oplock.ErrLockBusy) {
					if holder, ok := env.locks.Holder(); ok {
						return fmt.Errorf("another operation is running: %s (%s)", holder.Type, holder.Description)
					}
				}
				return err
			}

			recovered := 0
			for _, k := range keys {
				r := results[k]
				if r == nil {
					logWarning("%s: not recovered", k)
					continue
				}
				recovered++
				logSuccess("%s = %q (%s)", r.Key, r.Value, r.Source)
			}
			logInfo(i18n.N("Recovered %d key", "Recovered %d keys", recovered), recovered)

			if write && recovered > 0 {
				if err := writeRecovered(ctx, env, locale, results); err != nil {
					return err
				}
			}
			if recovered == 0 {
				logWarning("%s", i18n.T("nothing recovered"))
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "Target locale (default: source locale from config, else en)")
	cmd.Flags().StringVar(&keysFile, "keys-file", "", "File with one key per line")
	cmd.Flags().IntVar(&daysBack, "days-back", 0, "History lookback window in days (default 90)")
	cmd.Flags().IntVar(&maxCommits, "max-commits", 0, "Commits examined per file (default 30)")
	cmd.Flags().StringVar(&extractRef, "extract-ref", "", "Known-good commit checked before history scanning")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Concurrent file work (default 3)")
	cmd.Flags().BoolVar(&write, "write", false, "Write recovered values back into the locale file")
	cmd.Flags().BoolVar(&wait, "wait", false, "Queue behind a running operation instead of failing fast")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", time.Minute, "How long to queue with --wait")

	return cmd
}

// readKeysFile loads keys from a file, one per line. Blank lines and
// lines starting with # are skipped.
func readKeysFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading keys file: %w", err)
	}
	defer f.Close()

	var keys []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading keys file: %w", err)
	}
	return keys, nil
}

// ---------------------------------------------------------------------------
// clear-cache
// ---------------------------------------------------------------------------

func newClearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Drop memoized history and session results",
		Long: `Drop every memoized entry: discovered locale files, pre-fetched
commit history, file content at commits, the source-file index, and the
session's recovered results. The next recovery starts from a cold cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setupWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			env.engine.ClearCache()
			logSuccess("%s", i18n.T("cache cleared"))
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// write-back
// ---------------------------------------------------------------------------

// writeRecovered writes recovered values into the target locale's JSON
// file using the read-modify-write-once discipline: per-file lock, one
// read, one modify, one throttled write. PHP locale files are reported
// and skipped; txrecover does not rewrite PHP sources.
func writeRecovered(ctx context.Context, env *workspaceEnv, locale string, results map[string]*recovery.Result) error {
	cache := snapshot.New(env.ws.Root, env.src, snapshot.Options{SourceDirs: env.ws.SourceDirs})
	files := cache.FilesForLocale(locale)
	if len(files) == 0 {
		return fmt.Errorf("no locale files found for %q", locale)
	}

	var target localestore.FileInfo
	found := false
	for _, f := range files {
		if strings.HasSuffix(f.FileName, ".json") {
			target = f
			found = true
			break
		}
	}
	if !found {
		logWarning("%s has no JSON locale file; write-back skipped", locale)
		return nil
	}

	written := 0
	err := env.locks.WithFileLock(ctx, target.RelativePath, "recover", func() error {
		data, err := os.ReadFile(target.Path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", target.Path, err)
		}
		tree, err := localestore.ParseTree(string(data), target.FileName)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", target.Path, err)
		}

		for _, r := range results {
			if r == nil {
				continue
			}
			if err := localestore.SetNestedValue(tree, r.Key, r.Value); err != nil {
				logWarning("%s: %v", r.Key, err)
				continue
			}
			written++
		}
		if written == 0 {
			return nil
		}

		out, err := localestore.MarshalJSONTree(tree)
		if err != nil {
			return err
		}
		return os.WriteFile(target.Path, out, 0o644)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", target.RelativePath, err)
	}

	if written > 0 {
		logSuccess("Wrote %d value(s) to %s", written, target.RelativePath)
	}
	return nil
}

// splitList splits a comma-separated flag value, trimming blanks. An
// empty flag yields nil, which recovery treats as "placeholders unknown".
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
