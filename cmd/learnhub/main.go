// Command learnhub is a terminal client for the LearnHub learning platform.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "learnhub: %s\n", err)
		stop()
		os.Exit(1)
	}
}

// run executes the command line and always releases the wired client,
// whether or not the command failed.
func run(ctx context.Context) error {
	root := newRootCommand()
	err := root.ExecuteContext(ctx)
	if root.app != nil {
		if cerr := root.app.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type rootCmd struct {
	configPath string
	app        *app

	cobra.Command
}

func newRootCommand() *rootCmd {
	cmd := &rootCmd{
		Command: cobra.Command{
			Use:           "learnhub",
			Short:         "LearnHub terminal client",
			SilenceUsage:  true,
			SilenceErrors: true,
		},
	}
	cmd.PersistentFlags().StringVar(&cmd.configPath, "config", "", "path to a config file (yaml, json or toml)")
	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		a, err := newApp(c.Context(), cmd.configPath)
		if err != nil {
			return err
		}
		cmd.app = a
		return nil
	}

	get := func() *app { return cmd.app }
	cmd.AddCommand(
		loginCommand(get),
		registerCommand(get),
		verifyOTPCommand(get),
		socialLoginCommand(get),
		logoutCommand(get),
		whoamiCommand(get),
		resetPasswordCommand(get),
		confirmResetPasswordCommand(get),
		coursesCommand(get),
		profileCommand(get),
		certificatesCommand(get),
		enrollmentsCommand(get),
	)
	return cmd
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
