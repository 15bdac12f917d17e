package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/occurrence-console/internal/app"
	"github.com/boddenberg/occurrence-console/internal/config"
	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/observability"
	"github.com/boddenberg/occurrence-console/internal/service"

	"github.com/docopt/docopt-go"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const OccCtlVersion = "0.1.0"

const usage = `Occurrence console control.

Backend and collaborator settings are read from the environment (and .env),
the same way as the console server.

Usage:
    occctl export --email=<email> [--password=<password>]
        [--format=<format>] [--out=<path>]
        [--status=<status>] [--search=<text>]
        [--from=<date>] [--to=<date>]
        [--timeout=<timeout>]
    occctl notify --email=<email> [--password=<password>]
        [--timeout=<timeout>] <text>
    occctl reset-password [--timeout=<timeout>] <email>

Options:
    -h --help              Show this screen.
    --version              Show version.
    --email=<email>        Operator account.
    --password=<password>  Operator password. Prompted for when omitted.
    --format=<format>      csv or xlsx [default: csv].
    --out=<path>           Output file. Defaults to occurrences.<format>.
    --status=<status>      Open, In Analysis or Resolved.
    --search=<text>        Case-insensitive text filter.
    --from=<date>          First day, YYYY-MM-DD.
    --to=<date>            Last day, YYYY-MM-DD.
    --timeout=<timeout>    Give up after this long [default: 30s].`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], OccCtlVersion)
	if err != nil {
		panic(err)
	}

	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel, "occctl")
	defer logger.Sync()

	timeout := 30 * time.Second
	if v, _ := opts.String("--timeout"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	if export_, _ := opts.Bool("export"); export_ {
		err = export(ctx, opts, cfg, logger)
	} else if notify_, _ := opts.Bool("notify"); notify_ {
		err = notify(ctx, opts, cfg, logger)
	} else if reset_, _ := opts.Bool("reset-password"); reset_ {
		err = resetPassword(ctx, opts, cfg, logger)
	}

	if err != nil {
		var authErr *domain.ErrAuth
		if errors.As(err, &authErr) {
			fmt.Fprintln(os.Stderr, authErr.Message())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		logger.Sync()
		os.Exit(1)
	}
}

// signedIn builds a started console and signs the operator in. The caller
// must call the returned cleanup.
func signedIn(ctx context.Context, opts docopt.Opts, cfg *config.Config, logger *zap.Logger) (*service.Console, func(), error) {
	email, _ := opts.String("--email")
	password, _ := opts.String("--password")
	if password == "" {
		var err error
		if password, err = promptPassword(os.Stdin, os.Stderr); err != nil {
			return nil, nil, err
		}
	}

	metrics := observability.NewMetrics()
	backend, err := app.NewBackend(ctx, cfg, metrics, logger)
	if err != nil {
		return nil, nil, err
	}
	console := app.NewConsole(backend, cfg, metrics, logger)
	if err := console.Start(ctx); err != nil {
		backend.Close()
		return nil, nil, err
	}
	cleanup := func() {
		console.Close()
		backend.Close()
	}

	view, err := console.SignIn(ctx, email, password)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if !view.Authenticated {
		cleanup()
		return nil, nil, &domain.ErrNotProvisioned{Email: email}
	}
	return console, cleanup, nil
}

func promptPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(out, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func export(ctx context.Context, opts docopt.Opts, cfg *config.Config, logger *zap.Logger) error {
	criteria, err := exportCriteria(opts)
	if err != nil {
		return err
	}
	format, _ := opts.String("--format")
	out, _ := opts.String("--out")
	switch format {
	case "csv":
		if out == "" {
			out = service.CSVFileName
		}
	case "xlsx":
		if out == "" {
			out = service.XLSXFileName
		}
	default:
		return fmt.Errorf("unknown format %q (want csv or xlsx)", format)
	}

	console, cleanup, err := signedIn(ctx, opts, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := console.WaitLoaded(ctx, service.SliceOccurrences); err != nil {
		return fmt.Errorf("waiting for occurrences: %w", err)
	}
	rows := console.ExportRows(criteria)

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if format == "xlsx" {
		err = service.ExportXLSX(f, rows)
	} else {
		err = service.ExportCSV(f, rows)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	fmt.Printf("%d occurrences written to %s\n", len(rows), out)
	return nil
}

func exportCriteria(opts docopt.Opts) (service.Criteria, error) {
	var c service.Criteria
	status, _ := opts.String("--status")
	c.Status = domain.Status(status)
	if c.Status != "" && !c.Status.Valid() {
		return c, &domain.ErrValidation{Field: "status", Message: "must be one of Open, In Analysis, Resolved"}
	}
	c.Search, _ = opts.String("--search")

	from, _ := opts.String("--from")
	to, _ := opts.String("--to")
	var err error
	if c.StartDate, err = domain.ParseDate(from); err != nil {
		return c, &domain.ErrValidation{Field: "from", Message: err.Error()}
	}
	if c.EndDate, err = domain.ParseDate(to); err != nil {
		return c, &domain.ErrValidation{Field: "to", Message: err.Error()}
	}
	return c, nil
}

func notify(ctx context.Context, opts docopt.Opts, cfg *config.Config, logger *zap.Logger) error {
	text, _ := opts.String("<text>")

	console, cleanup, err := signedIn(ctx, opts, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	receipt, err := console.Relay.Send(ctx, text)
	if err != nil {
		return err
	}
	fmt.Printf("sent %s\n", receipt.ID)
	return nil
}

func resetPassword(ctx context.Context, opts docopt.Opts, cfg *config.Config, logger *zap.Logger) error {
	email, _ := opts.String("<email>")

	backend, err := app.NewBackend(ctx, cfg, observability.NewMetrics(), logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.Auth.SendPasswordReset(ctx, email); err != nil {
		return err
	}
	fmt.Printf("password reset email sent to %s\n", email)
	return nil
}
