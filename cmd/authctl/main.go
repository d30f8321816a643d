package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-print"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/config"
)

const usage = `usage: authctl [-config file] <command> [flags]

commands:
  inspect <token>                       decode a token and evaluate it now
  mint -sub email [-role R] [-ttl d]    sign a development token
  login -email e -password p            log in and store the token
  register -name n -email e -password p -role R
  status                                evaluate the stored token
  logout                                clear the stored token
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("authctl", flag.ContinueOnError)
	configPath := global.String("config", "", "path to YAML config file")
	if err := global.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}

	rest := global.Args()
	if len(rest) == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "inspect":
		return runInspect(ctx, cfg, cmdArgs, out)
	case "mint":
		return runMint(ctx, cfg, cmdArgs, out)
	case "login":
		return runLogin(ctx, cfg, cmdArgs, out)
	case "register":
		return runRegister(ctx, cfg, cmdArgs, out)
	case "status":
		return runStatus(ctx, cfg, out)
	case "logout":
		return runLogout(ctx, cfg, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

type inspection struct {
	WellFormed bool              `json:"well_formed"`
	State      auth.SessionState `json:"state"`
	Subject    string            `json:"subject,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Role       auth.Role         `json:"role,omitempty"`
	IssuedAt   *time.Time        `json:"issued_at,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	Claims     map[string]any    `json:"claims,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func inspect(codec *auth.TokenCodec, token string, now time.Time) inspection {
	session := auth.NewSessionPolicy(codec).Evaluate(token, now)
	result := inspection{
		WellFormed: codec.IsWellFormed(token),
		State:      session.State,
		Subject:    session.Subject,
		UserID:     session.UserID,
		Role:       session.Role,
	}
	if !session.IssuedAt.IsZero() {
		result.IssuedAt = &session.IssuedAt
	}
	if !session.ExpiresAt.IsZero() {
		result.ExpiresAt = &session.ExpiresAt
	}

	claims, err := codec.Decode(token)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Claims = claims.Extra
	return result
}

func runInspect(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: inspect takes exactly one token", errUsage)
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(out, print.MaybePrettyJSON(inspect(a.codec, strings.TrimSpace(args[0]), time.Now())))
	return nil
}

func runMint(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	sub := fs.String("sub", "", "subject (user e-mail)")
	userID := fs.String("user-id", "", "user id, random UUID when empty")
	role := fs.String("role", string(auth.RoleClient), "CLIENT or SELLER")
	ttl := fs.Duration("ttl", auth.DefaultMintTTL, "token lifetime, negative for an expired token")
	save := fs.Bool("save", false, "store the token as the current session")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}

	if cfg.Token.SigningSecret == "" {
		return fmt.Errorf("mint requires %s_TOKEN_SIGNING_SECRET", config.EnvPrefix)
	}
	r, ok := auth.ParseRole(*role)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", errUsage, *role)
	}

	token, _, err := auth.NewTokenMinter([]byte(cfg.Token.SigningSecret)).Mint(auth.MintOptions{
		Subject: *sub,
		UserID:  *userID,
		Role:    r,
		TTL:     *ttl,
	})
	if err != nil {
		return err
	}

	if *save {
		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.store.Save(ctx, token); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, token)
	return nil
}

func runLogin(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	b := a.broadcaster(ctx, a.navigator())
	defer b.Close()

	svc := auth.NewAuthService(a.gateway, b,
		auth.WithServiceConfig(cfg),
		auth.WithServiceCodec(a.codec),
		auth.WithServiceLogger(a.logger),
		auth.WithServiceActivitySink(a.activity),
	)

	if _, err := svc.Login(ctx, auth.Credentials{Email: *email, Password: *password}); err != nil {
		return err
	}

	b.Wait()
	fmt.Fprintln(out, print.MaybePrettyJSON(b.Current()))
	return nil
}

func runRegister(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", "", "account password")
	role := fs.String("role", string(auth.RoleClient), "CLIENT or SELLER")
	avatar := fs.String("avatar", "", "avatar reference")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	b := a.broadcaster(ctx, a.navigator())
	defer b.Close()

	r, _ := auth.ParseRole(*role)
	svc := auth.NewAuthService(a.gateway, b,
		auth.WithServiceConfig(cfg),
		auth.WithServiceLogger(a.logger),
		auth.WithServiceActivitySink(a.activity),
	)

	id, err := svc.Register(ctx, auth.Registration{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Role:     r,
		Avatar:   *avatar,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, id)
	return nil
}

type statusReport struct {
	Session string         `json:"session"`
	State   auth.AuthState `json:"state"`
}

func runStatus(ctx context.Context, cfg *config.Config, out io.Writer) error {
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	session := a.checker().Current(ctx)

	b := a.broadcaster(ctx, nil)
	defer b.Close()
	b.Wait()

	fmt.Fprintln(out, print.MaybePrettyJSON(statusReport{
		Session: session.String(),
		State:   b.Current(),
	}))
	return nil
}

func runLogout(ctx context.Context, cfg *config.Config, out io.Writer) error {
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	b := a.broadcaster(ctx, a.navigator())
	defer b.Close()

	fmt.Fprintln(out, print.MaybePrettyJSON(b.Logout(ctx)))
	return nil
}

func (a *app) navigator() auth.Navigator {
	return auth.NavigatorFunc(func(path string) {
		a.logger.Debug("navigate", "path", path)
	})
}
