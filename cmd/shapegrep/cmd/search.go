package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/corey/shapegrep/internal/app"
	"github.com/corey/shapegrep/internal/ports"
)

// searchFlags are shared by search and watch.
type searchFlags struct {
	queries      []string
	lang         string
	include      []string
	exclude      []string
	debug        bool
	noCache      bool
	jsonOut      bool
	countOnly    bool
	filesOnly    bool
	quiet        bool
	stats        bool
	textFallback bool
}

func (f *searchFlags) register(fs *pflag.FlagSet) {
	fs.StringP("mode", "m", "", "Match mode: exact, include or text (default from config: exact)")
	fs.BoolP("ignore-case", "i", false, "Case insensitive")
	fs.Int("workers", 0, "Worker goroutines (0 = one per CPU)")
	fs.BoolVar(&f.textFallback, "text-fallback", false, "Text-match files that fail to parse")
	fs.StringArrayVarP(&f.queries, "query", "e", nil, "Query (repeatable); all positional args are then paths")
	fs.StringVarP(&f.lang, "lang", "L", "", "Parse every file as this language (javascript, typescript, tsx, python)")
	fs.StringArrayVar(&f.include, "include", nil, "Only search files matching this glob (repeatable)")
	fs.StringArrayVar(&f.exclude, "exclude", nil, "Skip files and directories matching this glob (repeatable)")
	fs.BoolVar(&f.debug, "debug", false, "Log compiled patterns and match traces to stderr")
	fs.BoolVar(&f.noCache, "no-cache", false, "Bypass the report cache")
	fs.BoolVar(&f.jsonOut, "json", false, "Print the report as JSON")
	fs.BoolVarP(&f.countOnly, "count", "c", false, "Print match counts per file")
	fs.BoolVarP(&f.filesOnly, "files-with-matches", "l", false, "Print only names of files with matches")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Print nothing; exit status only")
	fs.BoolVar(&f.stats, "stats", false, "Print a summary line to stderr")
}

// bind maps the command's tuning flags onto config keys, so flags override
// the config file and environment.
func (f *searchFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	bindFlag("search.mode", fs.Lookup("mode"))
	bindFlag("search.case_insensitive", fs.Lookup("ignore-case"))
	bindFlag("search.workers", fs.Lookup("workers"))
	bindFlag("search.text_fallback", fs.Lookup("text-fallback"))
}

// params splits args into queries and roots.
func (f *searchFlags) params(args []string) (app.SearchParams, error) {
	queries := f.queries
	roots := args
	if len(queries) == 0 {
		if len(args) == 0 {
			return app.SearchParams{}, fmt.Errorf("no query given")
		}
		queries, roots = args[:1], args[1:]
	}
	p := app.SearchParams{
		Queries: queries,
		Roots:   roots,
		Debug:   f.debug,
		Include: f.include,
		Exclude: f.exclude,
		NoCache: f.noCache,
	}
	if f.lang != "" {
		lang, err := ports.ParseLanguage(f.lang)
		if err != nil {
			return app.SearchParams{}, err
		}
		p.Language = lang
	}
	return p, nil
}

func (f *searchFlags) printer() *reportPrinter {
	return &reportPrinter{
		out:       os.Stdout,
		errOut:    os.Stderr,
		width:     terminalWidth(),
		jsonOut:   f.jsonOut,
		countOnly: f.countOnly,
		filesOnly: f.filesOnly,
		quiet:     f.quiet,
		stats:     f.stats,
	}
}

var searchOpts searchFlags

var searchCmd = &cobra.Command{
	Use:   "search [flags] <query> [path ...]",
	Short: "Search files for a code shape",
	Long: `Search files for a code shape.

Paths default to the current directory. Directories are walked recursively,
skipping VCS, dependency and build directories.

Exit status is 0 when something matched, 1 when nothing did and 2 on error.`,
	Example: `  shapegrep search 'useEffect(() => { $$$ }, [])' src
  shapegrep search -m include 'if (isRTL) { I18nManager.forceRTL(true); }'
  shapegrep search -m text 'const $$ = use$$(' --include '*.js'`,
	Args: cobra.ArbitraryArgs,
	PreRun: func(cmd *cobra.Command, _ []string) {
		searchOpts.bind(cmd)
	},
	RunE: runSearch,
}

func init() {
	searchOpts.register(searchCmd.Flags())
}

func runSearch(cmd *cobra.Command, args []string) error {
	params, err := searchOpts.params(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shapegrep: %v\n", err)
		return grepExit{2}
	}

	a, err := newApp(searchOpts.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shapegrep: %v\n", err)
		return grepExit{2}
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := a.Search(ctx, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shapegrep: %v\n", err)
		return grepExit{2}
	}

	p := searchOpts.printer()
	if err := p.print(report, params.Queries); err != nil {
		return err
	}
	return exitFor(report)
}

// exitFor maps a report to grep's exit status.
func exitFor(report *ports.SearchReport) error {
	switch {
	case len(report.Matches) > 0:
		return nil
	case len(report.QueryErrors) > 0 || len(report.Errors) > 0:
		return grepExit{2}
	default:
		return grepExit{1}
	}
}
