package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aussiebroadwan/gatekeep/pkg/gatekeep"
	"github.com/aussiebroadwan/gatekeep/pkg/oauth"
	"github.com/aussiebroadwan/gatekeep/pkg/session"
	"github.com/spf13/cobra"
)

func (c *cli) newLoginCmd() *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a username and password",
		Long: `Log in with the OAuth password grant and keep the tokens in the local store.

The password is read from standard input. Without --password-stdin the
username is prompted for as well when --username is not given.

Examples:
  gatekeep login --username ann
  echo "$PASSWORD" | gatekeep login --username ann --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := readCredentials(cmd, username, passwordStdin)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, g *gatekeep.Gatekeep) error {
				res, err := g.Session.Authenticate(ctx, creds)
				if err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
				if res.User == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", res.User.Username)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin without prompting")
	return cmd
}

// readCredentials prompts on stderr so stdout stays clean.
func readCredentials(cmd *cobra.Command, username string, passwordStdin bool) (session.Credentials, error) {
	in := bufio.NewReader(cmd.InOrStdin())
	prompt := func(label string) (string, error) {
		if !passwordStdin {
			fmt.Fprint(cmd.ErrOrStderr(), label)
		}
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	var err error
	if username == "" {
		if passwordStdin {
			return session.Credentials{}, errors.New("--username is required with --password-stdin")
		}
		if username, err = prompt("Username: "); err != nil {
			return session.Credentials{}, fmt.Errorf("read username: %w", err)
		}
	}
	password, err := prompt("Password: ")
	if err != nil {
		return session.Credentials{}, fmt.Errorf("read password: %w", err)
	}
	return session.Credentials{Username: username, Password: password}, nil
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, g *gatekeep.Gatekeep) error {
				err := g.Session.EndSession(ctx)
				if errors.Is(err, oauth.ErrNoToken) {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
					return nil
				}
				if err != nil {
					return fmt.Errorf("logout failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func (c *cli) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the current account as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, g *gatekeep.Gatekeep) error {
				if _, err := g.Tokens.Token(ctx); err != nil {
					return requireAuth(err)
				}
				u, err := g.Identity.Get(ctx, true)
				if err != nil {
					return requireAuth(err)
				}
				return writeJSON(cmd.OutOrStdout(), u.Account)
			})
		},
	}
}

func (c *cli) newTokenCmd() *cobra.Command {
	var (
		refresh bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print the access token, refreshing it when it has expired",
		Long: `Print the access token, refreshing it when it has expired.

Examples:
  curl -H "Authorization: Bearer $(gatekeep token)" https://api.example.com/
  gatekeep token --refresh --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, g *gatekeep.Gatekeep) error {
				if refresh {
					if _, err := g.OAuth.Refresh(ctx, nil, nil); err != nil {
						return requireAuth(err)
					}
				}
				access, err := g.Tokens.AccessToken(ctx)
				if err != nil {
					return requireAuth(err)
				}
				if !asJSON {
					fmt.Fprintln(cmd.OutOrStdout(), access)
					return nil
				}
				tok, err := g.Tokens.Token(ctx)
				if err != nil {
					return requireAuth(err)
				}
				return writeJSON(cmd.OutOrStdout(), tok)
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh before printing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the whole token record")
	return cmd
}
