package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"todolist/internal/client"
	"todolist/internal/repository/sqlite"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var (
	errUsage       = errors.New("usage: todoctl [-server URL] [-session FILE] register|login|logout|whoami")
	errNotLoggedIn = errors.New("not logged in, run todoctl login")
)

type app struct {
	guard *client.Guard
	in    *bufio.Reader
	out   io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, logger *logrus.Logger) error {
	fs := flag.NewFlagSet("todoctl", flag.ContinueOnError)
	fs.SetOutput(stdout)
	server := fs.String("server", envOr("TODOLIST_SERVER_URL", "http://localhost:5000"), "todolist server base URL")
	sessionPath := fs.String("session", envOr("TODOLIST_SESSION_PATH", defaultSessionPath()), "local session file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	db, err := sqlite.Open(*sessionPath)
	if err != nil {
		return err
	}
	defer db.Close()

	cache := client.NewSessionCache(db)
	if err := cache.Init(ctx); err != nil {
		return err
	}

	a := &app{
		guard: client.NewGuard(client.NewAPI(*server, nil), cache, logger),
		in:    bufio.NewReader(stdin),
		out:   stdout,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "display name")
	alias := fs.String("alias", "", "login alias")
	email := fs.String("email", "", "email address (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *name == "" {
		if *name, err = a.prompt("Name"); err != nil {
			return err
		}
	}
	if *alias == "" {
		if *alias, err = a.prompt("Alias"); err != nil {
			return err
		}
	}
	password, err := a.password()
	if err != nil {
		return err
	}

	req := client.RegisterRequest{Name: *name, Alias: *alias, Password: password}
	if *email != "" {
		req.Email = email
	}
	user, err := a.guard.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered and logged in as %s\n", user.Alias)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	alias := fs.String("alias", "", "login alias")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *alias == "" {
		if *alias, err = a.prompt("Alias"); err != nil {
			return err
		}
	}
	password, err := a.password()
	if err != nil {
		return err
	}

	user, err := a.guard.Login(ctx, *alias, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", user.Alias)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.guard.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	state, user, err := a.guard.Check(ctx)
	if err != nil {
		return err
	}
	if state != client.StateAuthenticated {
		return errNotLoggedIn
	}

	fmt.Fprintf(a.out, "%s (%s)", user.Alias, user.Name)
	if user.Email != nil {
		fmt.Fprintf(a.out, " <%s>", *user.Email)
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) password() (string, error) {
	fmt.Fprint(a.out, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".todolist", "session.db")
	}
	return filepath.Join(dir, "todolist", "session.db")
}
