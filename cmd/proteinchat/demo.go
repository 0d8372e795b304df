package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const banner = "******************"

type demoOptions struct {
	embedding string
	prompt    string
}

func addDemoFlags(cmd *cobra.Command, d *demoOptions) {
	cmd.Flags().StringVar(&d.embedding, "embedding", "", "protein embedding file (.npy or .json); defaults to run.embedding")
	cmd.Flags().StringVar(&d.prompt, "prompt", "", "question to ask; defaults to run.prompt")
}

func newDemoCmd(opts *rootOptions) *cobra.Command {
	d := &demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo [key=value...]",
		Short: "Run one scripted exchange and print the answer with the elapsed time",
		Args:  overrideArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts, d, args)
		},
	}
	addDemoFlags(cmd, d)
	return cmd
}

func runDemo(cmd *cobra.Command, opts *rootOptions, d *demoOptions, args []string) error {
	app, _, err := opts.newApp(cmd.Context(), args)
	if err != nil {
		return err
	}

	path := strings.TrimSpace(d.embedding)
	if path == "" {
		path = app.Config().Run.Embedding
	}
	if path == "" {
		return errors.New("no embedding given; pass --embedding or set run.embedding")
	}

	res, err := app.Describe(cmd.Context(), path, d.prompt)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res.Message, res.Elapsed.Seconds())
	return nil
}

func printResult(out io.Writer, message string, seconds float64) {
	_, _ = fmt.Fprintln(out, banner)
	_, _ = fmt.Fprintf(out, "llm_message: %s\n", message)
	_, _ = fmt.Fprintf(out, "%.3f\n", seconds)
	_, _ = fmt.Fprintln(out, banner)
}
