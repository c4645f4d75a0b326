// Package cli is the command line interface checking and editing a strict account database.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ubuntu/strictpgs/internal/consts"
	"github.com/ubuntu/strictpgs/internal/pgs"
	"github.com/ubuntu/strictpgs/log"
)

// cmdName is the binary name and the prefix of its configuration and environment variables.
const cmdName = "pgsctl"

// App encapsulate commands and options of pgsctl, which can be controlled by env variables and config files.
type App struct {
	rootCmd cobra.Command
	viper   *viper.Viper
	config  appConfig

	stdin     io.Reader
	configDir string
}

func init() {
	cobra.EnableCommandSorting = false
}

type options struct {
	stdin     io.Reader
	stdout    io.Writer
	configDir string
}

// Option is a functional option to override the App defaults.
type Option func(*options)

// New registers commands and return a new App.
func New(args ...Option) *App {
	opts := options{
		stdin:     os.Stdin,
		configDir: consts.DefaultConfigDir,
	}
	for _, arg := range args {
		arg(&opts)
	}

	a := App{stdin: opts.stdin, configDir: opts.configDir}
	a.rootCmd = cobra.Command{
		Use:   fmt.Sprintf("%s COMMAND", cmdName),
		Short: "Strict account database manager",
		Long: `Check and edit passwd, group, shadow and gshadow files following the
categorized layout of a strict account database.`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.rootCmd.SilenceUsage = true

			// Set config defaults
			a.config = appConfig{Prefix: consts.DefaultPrefix}

			// Install and unmarshall configuration
			if err := initViperConfig(cmdName, &a.rootCmd, a.viper, a.configDir); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to decode configuration into struct: %w", err)
			}

			setVerboseMode(a.config.Verbosity)
			log.Debugf(context.Background(), "Verbosity: %d", a.config.Verbosity)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error { return cmd.Usage() },
		// We display usage error ourselves
		SilenceErrors: true,
	}
	if opts.stdout != nil {
		a.rootCmd.SetOut(opts.stdout)
		a.rootCmd.SetErr(opts.stdout)
	}
	a.viper = viper.New()

	installVerbosityFlag(&a.rootCmd, a.viper)
	installConfigFlag(&a.rootCmd)
	installPathFlags(&a.rootCmd, a.viper)

	// subcommands
	a.installVerify()
	a.installFixate()
	a.installDump()
	a.installUser()
	a.installGroup()
	a.installVersion()

	return &a
}

// Run executes the command and associated process. It returns an error on syntax/usage error.
func (a *App) Run() error {
	log.InitJournalHandler(false)
	return a.rootCmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.rootCmd.SilenceUsage
}

// SetArgs changes the command line arguments used by Run.
func (a *App) SetArgs(args []string) {
	a.rootCmd.SetArgs(args)
}

// RootCmd returns a copy of the root command for the app.
// Shouldn't be in general necessary apart when running generators.
func (a App) RootCmd() cobra.Command {
	return a.rootCmd
}

func (a *App) storeOptions() []pgs.Option {
	if a.config.LoginDefs == "" {
		return nil
	}
	return []pgs.Option{pgs.WithLoginDefsPath(a.config.LoginDefs)}
}

// view opens the database read-only for f.
func (a *App) view(f func(s *pgs.Store) error) (err error) {
	s, err := pgs.Open(a.config.Prefix, true, a.storeOptions()...)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Discard()) }()

	return f(s)
}

// update opens the database read-write, applies f and saves the result.
// Nothing is written when f fails.
func (a *App) update(f func(s *pgs.Store) error) error {
	s, err := pgs.Open(a.config.Prefix, false, a.storeOptions()...)
	if err != nil {
		return err
	}

	if err := f(s); err != nil {
		return errors.Join(err, s.Discard())
	}

	if err := s.Save(); err != nil {
		// A failed verification keeps the store open and locked.
		if dErr := s.Discard(); dErr != nil && !errors.Is(dErr, pgs.ErrClosed) {
			err = errors.Join(err, dErr)
		}
		return err
	}
	return nil
}
