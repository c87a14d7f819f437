// Package app builds the cobra command behind every Skycourier binary: named
// flag sets, an optional config file merged through viper, option validation
// and an optional config watch.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
	"k8s.io/component-base/term"

	"github.com/autopeer-io/skycourier/pkg/log"
)

// RunFunc is the body of a command, called once options are valid.
type RunFunc func() error

// ConfigWatchFunc is called with the reloaded config after the config file
// changes on disk.
type ConfigWatchFunc func(v *viper.Viper)

// App is a command-line application.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	noConfig    bool
	args        cobra.PositionalArgs
	onChange    ConfigWatchFunc

	v   *viper.Viper
	cmd *cobra.Command
}

// Option configures an App.
type Option func(*App)

// WithDescription sets the long help text.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions sets the options the flags and config file are bound to.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the command body.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithNoConfig drops the --config flag.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// WithValidArgs sets the positional argument check.
func WithValidArgs(args cobra.PositionalArgs) Option {
	return func(a *App) { a.args = args }
}

// WithDefaultValidArgs rejects any positional argument.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithConfigWatch reloads the config file when it changes and hands it to
// fn. Only settings that are safe to change at runtime should be read there.
func WithConfigWatch(fn ConfigWatchFunc) Option {
	return func(a *App) { a.onChange = fn }
}

// WithLogLevelReload watches the config file and applies log.level changes
// to the running logger.
func WithLogLevelReload() Option {
	return WithConfigWatch(func(v *viper.Viper) {
		level := v.GetString("log.level")
		if level == "" {
			return
		}
		if err := log.SetLevel(level); err != nil {
			log.Error(err, "Ignoring log level from config")
			return
		}
		log.Info("Log level reloaded", "level", level)
	})
}

// NewApp builds an application named name.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
		v:         viper.New(),
	}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

// Command returns the underlying cobra command.
func (a *App) Command() *cobra.Command { return a.cmd }

// Viper returns the config store the command reads from.
func (a *App) Viper() *viper.Viper { return a.v }

// Run executes the command and exits the process on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
	}
	if !a.noConfig {
		addConfigFlag(a.name, namedFlagSets.FlagSet("global"))
	}
	globalflag.AddGlobalFlags(namedFlagSets.FlagSet("global"), cmd.Name())

	fs := cmd.Flags()
	for _, f := range namedFlagSets.FlagSets {
		fs.AddFlagSet(f)
	}

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, namedFlagSets, cols)

	if a.runFunc != nil {
		cmd.RunE = a.runCommand
	}
	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	a.v.SetEnvPrefix(envPrefix(a.name))
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if !a.noConfig {
		if err := loadConfig(a.v, cmd.Flags()); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.v.Unmarshal(a.options); err != nil {
			return fmt.Errorf("failed to decode configuration: %w", err)
		}
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.onChange != nil && a.v.ConfigFileUsed() != "" {
		a.v.OnConfigChange(func(e fsnotify.Event) {
			log.Info("Config file changed", "file", e.Name, "op", e.Op.String())
			a.onChange(a.v)
		})
		a.v.WatchConfig()
	}

	return a.runFunc()
}

func envPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
