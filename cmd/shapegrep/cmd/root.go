package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/corey/shapegrep/internal/app"
	"github.com/corey/shapegrep/internal/config"
	"github.com/corey/shapegrep/internal/slogger"
)

var (
	cfgFile   string
	colorMode string
	v         = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "shapegrep",
	Short: "shapegrep: structural code search",
	Long: `Search JavaScript, TypeScript and Python code by shape.

A query is a code snippet. $$ matches any single node, $$$ any run of
siblings, $$name captures an identifier, and use$$ or "api/$$" match
identifiers and strings by prefix. Whitespace and formatting never matter.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// projectRoot returns the project root (cwd by default).
func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	return dir
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && GrepExitCode(err) < 0 {
		fmt.Fprintf(os.Stderr, "shapegrep: %v\n", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./.shapegrep.yaml)")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (json, text)")
	pf.StringVar(&colorMode, "color", "auto", "Color output: auto, always, never")

	bindFlag("log.level", pf.Lookup("log-level"))
	bindFlag("log.format", pf.Lookup("log-format"))

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(languagesCmd)
}

func bindFlag(key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	if err := v.BindPFlag(key, flag); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag.Name, err)
	}
}

func initConfig() {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".shapegrep")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("SHAPEGREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found; use defaults and environment
	}
}

// newApp loads the configuration, installs the logger and wires the app.
func newApp(debug bool) (*app.App, error) {
	settings, err := config.New(v)
	if err != nil {
		return nil, err
	}
	level := settings.Log.Level
	if debug {
		level = "debug"
	}
	logger, err := slogger.New(slogger.Config{Level: level, Format: settings.Log.Format, Output: os.Stderr})
	if err != nil {
		return nil, err
	}
	slogger.SetGlobalLogger(logger)
	color.NoColor = !resolveColor(colorMode)

	return app.New(app.Config{
		ProjectRoot:   projectRoot(),
		Settings:      settings,
		ParserFactory: parserFactory(settings.DefaultLanguage()),
		Logger:        logger.WithComponent("app"),
	})
}
