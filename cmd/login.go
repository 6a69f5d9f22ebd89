package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/api"
)

var (
	loginUsername      string
	loginPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the entry-logging API",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Admin username (prompted when empty)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin without prompting")
}

func runLogin(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(os.Stdin)

	username := loginUsername
	if username == "" {
		fmt.Fprint(os.Stderr, "Username: ")
		username = readLine(in)
	}
	if !loginPasswordStdin {
		fmt.Fprint(os.Stderr, "Password: ")
	}
	password := readLine(in)
	if username == "" || password == "" {
		fmt.Fprintln(os.Stderr, "Username and password are required.")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.API.Timeout)
	defer cancel()

	client := api.NewClient(cfg.API.BaseURL, api.WithLogger(logger))
	tok, err := client.Login(ctx, username, password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Login failed:", err)
		os.Exit(1)
	}

	store := tokenStore()
	if err := store.Save(tok); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Signed in as %s.\n", username)
	if !tok.Expiry.IsZero() {
		fmt.Printf("Session expires at %s.\n", tok.Expiry.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := tokenStore().Clear(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println("Signed out.")
	return nil
}

// readLine returns the next input line without its line ending.
func readLine(r *bufio.Reader) string {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return ""
	}
	return strings.TrimRight(line, "\r\n")
}

// requireSession stops the command when no usable session is stored.
func requireSession() {
	if _, err := tokenStore().Require(time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
