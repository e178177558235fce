package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func (c *cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the session",
		Long: `Log in to Essence. The password is read from the first line of
standard input, so it never appears in the process list or shell history:

  essence login bob < password.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			user, err := c.app.Session.Login(cmd.Context(), args[0], password)
			if err != nil {
				return fmt.Errorf("login failed, please try again: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.Username)
			return nil
		},
	}
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.app.Session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			snap := c.app.Session.Current()
			if !snap.Authenticated {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			user := snap.User
			if remote {
				u, err := c.app.Blog.Dashboard(cmd.Context())
				if err != nil {
					return err
				}
				user = u
			}

			fmt.Fprintf(out, "%s (id %s)\n", user.Username, user.ID)
			if name := strings.TrimSpace(user.FirstName + " " + user.LastName); name != "" {
				fmt.Fprintf(out, "  Name:  %s\n", name)
			}
			if user.Email != "" {
				fmt.Fprintf(out, "  Email: %s\n", user.Email)
			}
			if user.Bio != "" {
				fmt.Fprintf(out, "  Bio:   %s\n", user.Bio)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the full profile from the backend")

	return cmd
}
