package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"go.pilab.hu/focusboard/domain"
)

const minPasswordLength = 8

type userView struct {
	ID        string   `yaml:"id"`
	Login     string   `yaml:"login"`
	Providers []string `yaml:"providers,omitempty"`
	CreatedAt string   `yaml:"created_at"`
}

func newUserView(u *domain.User) userView {
	v := userView{
		ID:        u.ID,
		Login:     u.ApplicationLogin,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	for _, p := range u.ConnectedProviders() {
		v.Providers = append(v.Providers, p.String())
	}
	return v
}

func newUserCmd(backendFor func(*cobra.Command) (*Backend, error)) *cobra.Command {
	userCmd := &cobra.Command{
		Use:     "user",
		Short:   "Manage application logins",
		Aliases: []string{"users"},
	}

	createCmd := &cobra.Command{
		Use:   "create LOGIN",
		Short: "Create an application login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFor(cmd)
			if err != nil {
				return err
			}

			backend, err := backendFor(cmd)
			if err != nil {
				return err
			}
			defer backend.Close(cmd.Context())

			user, err := backend.Users.CreateUser(cmd.Context(), args[0], password)
			if errors.Is(err, domain.ErrUserExists) {
				return fmt.Errorf("user %q already exists", args[0])
			}
			if err != nil {
				return fmt.Errorf("user creation failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "User created successfully:")
			return printYAML(cmd.OutOrStdout(), newUserView(user))
		},
	}
	createCmd.Flags().String("password", "", "password (prompted when omitted)")
	createCmd.Flags().Bool("password-stdin", false, "read the password from stdin")

	passwdCmd := &cobra.Command{
		Use:   "passwd LOGIN",
		Short: "Set the password of an application login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFor(cmd)
			if err != nil {
				return err
			}

			backend, err := backendFor(cmd)
			if err != nil {
				return err
			}
			defer backend.Close(cmd.Context())

			if err := backend.Users.SetPassword(cmd.Context(), args[0], password); err != nil {
				return fmt.Errorf("failed to set password: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s.\n", args[0])
			return nil
		},
	}
	passwdCmd.Flags().String("password", "", "password (prompted when omitted)")
	passwdCmd.Flags().Bool("password-stdin", false, "read the password from stdin")

	deleteCmd := &cobra.Command{
		Use:   "delete LOGIN",
		Short: "Delete an application login and its provider tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFor(cmd)
			if err != nil {
				return err
			}
			defer backend.Close(cmd.Context())

			if err := backend.Users.DeleteUser(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "User %s deleted.\n", args[0])
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List application logins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := backendFor(cmd)
			if err != nil {
				return err
			}
			defer backend.Close(cmd.Context())

			users, err := backend.Users.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
				return nil
			}

			views := make([]userView, 0, len(users))
			for _, u := range users {
				views = append(views, newUserView(u))
			}
			return printYAML(cmd.OutOrStdout(), views)
		},
	}

	userCmd.AddCommand(createCmd, passwdCmd, deleteCmd, listCmd)

	return userCmd
}

// passwordFor takes the password from --password, --password-stdin or an
// interactive prompt, in that order.
func passwordFor(cmd *cobra.Command) (string, error) {
	if password, _ := cmd.Flags().GetString("password"); password != "" {
		return checkPassword(password)
	}

	if fromStdin, _ := cmd.Flags().GetBool("password-stdin"); fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return checkPassword(strings.TrimRight(line, "\r\n"))
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal for the password prompt: use --password or --password-stdin")
	}

	out := cmd.ErrOrStderr()
	fmt.Fprint(out, "Enter password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(out, "Confirm password: ")
	confirm, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if string(password) != string(confirm) {
		return "", errors.New("passwords do not match")
	}

	return checkPassword(string(password))
}

func checkPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return password, nil
}

func printYAML(w io.Writer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
