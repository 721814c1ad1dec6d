package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/auth"
	"expense_tracker/internal/config"
	"expense_tracker/internal/db"
	"expense_tracker/internal/observability"
	"expense_tracker/internal/user"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

func main() {
	_ = godotenv.Load()
	logrus.SetLevel(logrus.WarnLevel)

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	app := &cli.App{
		Name:            "adduser",
		Usage:           "create an expense tracker account",
		Reader:          stdin,
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "username", Required: true},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "email address", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "password (prompted for if omitted)"},
			&cli.StringFlag{Name: "db", Usage: "SQLite database path; overrides DB_DRIVER and DB_SQLITE_PATH"},
		},
		Action: func(c *cli.Context) error {
			return addUser(c, stdin, stdout)
		},
	}
	return app.Run(append([]string{"adduser"}, args...))
}

func addUser(c *cli.Context, stdin io.Reader, stdout io.Writer) error {
	dbCfg, pwCfg, err := config.LoadDB()
	if err != nil {
		return err
	}
	if path := c.String("db"); path != "" {
		dbCfg.Driver = config.DriverSQLite
		dbCfg.SQLitePath = path
	}

	password := c.String("password")
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	req := user.RegisterRequest{Username: c.String("user"), Email: c.String("email"), Password: password}
	validate := validator.New()
	validate.SetTagName("binding")
	if err := validate.Struct(req); err != nil {
		return apperror.FromBinding(err)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, *dbCfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	if err := db.Migrate(*dbCfg); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc := user.NewUserService(user.NewUserRepository(), conn, auth.NewPasswordVault(*pwCfg), nil, metrics)

	u, err := svc.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return fmt.Errorf("user %s already exists", req.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", u.Username, u.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
