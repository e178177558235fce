package main

import (
	"github.com/spf13/cobra"

	"essence/internal/app"
	"essence/internal/config"
	"essence/internal/logger"
)

// cli carries the application built for the running command
type cli struct {
	profile string
	app     *app.App
}

// newRootCmd builds the command tree; the returned func releases the
// application once the command has finished, whether or not it failed
func newRootCmd() (*cobra.Command, func()) {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "essence",
		Short: "Read and write on the Essence blog from the terminal",
		Long: `essence is a client for the Essence blog.

The session is kept on disk between invocations, so log in once and
every later command runs as that user. Use --profile to keep several
accounts side by side.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.profile, "profile", "p", "", "session profile (default $SESSION_PROFILE or \"default\")")

	rootCmd.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.articlesCmd(),
		c.articleCmd(),
		c.likeCmd(),
		c.commentCmd(),
		c.writeCmd(),
		c.registerCmd(),
	)

	return rootCmd, c.close
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.profile != "" {
		cfg.Session.Profile = c.profile
	}

	log := logger.NewCLI()
	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}
