// Package auth supplies the bearer token sent to the task API. The identity
// provider is external; this package only finds a token and reads its claims.
package auth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"planmyday/internal/errors"
	"planmyday/internal/logger"

	"github.com/golang-jwt/jwt/v4"
)

// EnvToken overrides token_command when set.
const EnvToken = "PLANMYDAY_TOKEN"

// TokenSource yields the current session token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, mostly for tests and scripts.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.NewAuthError(nil)
	}
	return string(s), nil
}

// CommandSource runs a shell command (for example `op read ...`) that prints the
// token on stdout. The result is cached until the token's exp claim passes.
type CommandSource struct {
	Command string
	Timeout time.Duration

	mu     sync.Mutex
	cached string
	expiry time.Time
}

func (c *CommandSource) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != "" && (c.expiry.IsZero() || time.Now().Before(c.expiry)) {
		return c.cached, nil
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Debug("resolving session from command")
	cmd := shellCommand(ctx, c.Command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", errors.NewAuthError(fmt.Errorf("token_command failed: %w", err))
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return "", errors.NewAuthError(fmt.Errorf("token_command printed nothing"))
	}

	c.cached = tok
	c.expiry = time.Time{}
	if claims, err := Inspect(tok); err == nil && !claims.ExpiresAt.IsZero() {
		c.expiry = claims.ExpiresAt
	}
	return tok, nil
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// NewSource picks the token source: PLANMYDAY_TOKEN wins, then tokenCommand.
// With neither configured it returns a source that always fails with an auth error.
func NewSource(tokenCommand string) TokenSource {
	if tok := strings.TrimSpace(os.Getenv(EnvToken)); tok != "" {
		return StaticToken(tok)
	}
	if strings.TrimSpace(tokenCommand) != "" {
		return &CommandSource{Command: tokenCommand}
	}
	return StaticToken("")
}

// Claims is the subset of the session JWT shown by `planmyday auth status`.
type Claims struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
}

// Expired reports whether the token has an exp claim in the past.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Inspect decodes a JWT without verifying its signature. The API verifies
// tokens; the client only needs subject and expiry for display and warnings.
func Inspect(token string) (Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &rc); err != nil {
		return Claims{}, fmt.Errorf("token is not a JWT: %w", err)
	}
	c := Claims{Subject: rc.Subject, Issuer: rc.Issuer}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}

// Check fetches a token and fails early when it is visibly expired. Opaque
// (non-JWT) tokens pass through unchecked.
func Check(ctx context.Context, src TokenSource) (string, Claims, error) {
	tok, err := src.Token(ctx)
	if err != nil {
		return "", Claims{}, err
	}
	claims, err := Inspect(tok)
	if err != nil {
		return tok, Claims{}, nil
	}
	if claims.Expired(time.Now()) {
		return tok, claims, errors.NewTokenExpiredError(claims.ExpiresAt)
	}
	return tok, claims, nil
}
