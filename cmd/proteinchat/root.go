package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/proteinchat/proteinchat-go/pkg/config"
	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
	"github.com/proteinchat/proteinchat-go/pkg/proteinchat"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	cfgPath string
	gpuID   int
	options []string
	verbose bool

	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{stderr: os.Stderr}
	demo := &demoOptions{}

	root := &cobra.Command{
		Use:   "proteinchat",
		Short: "Ask a pretrained multimodal model about a protein structure embedding",
		Long: `proteinchat loads a model from a config file, uploads a precomputed protein
structure embedding into a conversation and prints the generated description.

Without a subcommand it runs the scripted demo exchange.`,
		Args:          overrideArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts, demo, args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgPath, "cfg-path", "", "path to configuration file (required)")
	flags.IntVar(&opts.gpuID, "gpu-id", 0, "specify the gpu to load the model")
	flags.StringArrayVar(&opts.options, "options", nil,
		"override some settings in the used config, the key-value pair in xxx=yyy format will be merged into config file (deprecated)")
	flags.BoolVar(&opts.verbose, "verbose", false, "debug logging")
	_ = root.MarkPersistentFlagRequired("cfg-path")
	_ = flags.MarkDeprecated("options", "pass overrides as trailing key=value arguments instead")
	addDemoFlags(root, demo)

	root.AddCommand(newDemoCmd(opts), newChatCmd(opts), newServeCmd(opts), newConfigCmd(opts))
	return root
}

// overrideArgs accepts trailing key=value arguments as config overrides.
func overrideArgs(_ *cobra.Command, args []string) error {
	for _, arg := range args {
		if !strings.Contains(arg, "=") {
			return fmt.Errorf("unexpected argument %q; overrides must be key=value", arg)
		}
	}
	return nil
}

// loadConfig reads .env, the config file and all overrides.
func (o *rootOptions) loadConfig(extra []string) (config.Config, error) {
	_ = godotenv.Load()

	overrides := append(append([]string{}, o.options...), extra...)
	cfg, err := config.Load(o.cfgPath, overrides)
	if err != nil {
		return config.Config{}, err
	}
	cfg.GPUID = o.gpuID
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o *rootOptions) newLogger(cfg config.Config) (loggerpkg.Logger, error) {
	level, err := loggerpkg.ParseLevel(cfg.Run.LogLevel)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		level = loggerpkg.LevelDebug
	}
	return loggerpkg.NewLeveledLogger(o.stderr, level), nil
}

// newApp loads config and initializes the chat.
func (o *rootOptions) newApp(ctx context.Context, extra []string) (*proteinchat.App, loggerpkg.Logger, error) {
	cfg, err := o.loadConfig(extra)
	if err != nil {
		return nil, nil, err
	}
	logger, err := o.newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	app, err := proteinchat.New(ctx, cfg, proteinchat.WithLogger(logger), proteinchat.WithVerbose(o.verbose))
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}
