package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jasonic/vlc/internal/app"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath  string
	pluginPaths []string
	logLevel    string
	logFormat   string
}

func (f *globalFlags) options(cmd *cobra.Command) app.Options {
	return app.Options{
		ConfigPath:  f.configPath,
		PluginPaths: f.pluginPaths,
		LogLevel:    f.logLevel,
		LogFormat:   f.logFormat,
		LogOutput:   cmd.ErrOrStderr(),
	}
}

// open creates the application and initializes its bank. The caller must
// Destroy it.
func (f *globalFlags) open(cmd *cobra.Command) (*app.Application, error) {
	a, err := app.New(f.options(cmd))
	if err != nil {
		return nil, err
	}
	if err := a.InitBank(cmd.Context()); err != nil {
		a.Destroy()
		return nil, err
	}
	return a, nil
}

func newRootCommand(version, commit, date string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "vlc",
		Short: "Module bank host for media capability providers",
		Long: `vlc hosts a bank of capability providers: builtin modules compiled into
the binary and Lua plugins found in the plugin paths. Each request for a
capability (an access, a decoder, a video output...) probes every provider of
that capability and pins the best one.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to the configuration file (default $VLC_CONFIG or ~/.config/vlc/vlc.toml)")
	pf.StringSliceVarP(&flags.pluginPaths, "plugin-path", "p", nil, "plugin search path (repeatable, replaces the configured paths)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(
		newListCommand(flags),
		newProbeCommand(flags),
		newSchemaCommand(flags),
		newConfigCommand(flags),
		newRunCommand(flags),
	)

	return rootCmd
}
