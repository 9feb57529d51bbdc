// Package svcctl restarts the receiver's systemd user service after a
// settings change. The monitor treats the resulting stream drop as an
// ordinary disconnect.
package svcctl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"os/user"
	"strings"
	"time"
)

type Config struct {
	// Unit is the systemd unit to restart, e.g. "gnss-receiver.service".
	Unit string

	// User, when set, runs systemctl as that account via sudo. The user
	// bus needs XDG_RUNTIME_DIR, which is resolved from the account's uid.
	User string

	Timeout time.Duration
}

// Runner executes one command and returns its combined output. Tests
// inject a fake.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

type Restarter struct {
	cfg Config
	run Runner
}

func New(cfg Config) (*Restarter, error) {
	cfg.Unit = strings.TrimSpace(cfg.Unit)
	if cfg.Unit == "" {
		return nil, fmt.Errorf("svcctl: unit is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Restarter{cfg: cfg, run: execRunner}, nil
}

// Restart runs "systemctl --user restart <unit>", bounded by the configured
// timeout. Command output is folded into the returned error.
func (r *Restarter) Restart(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("svcctl: restarter is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	name := "systemctl"
	args := []string{"--user", "restart", r.cfg.Unit}

	if u := strings.TrimSpace(r.cfg.User); u != "" {
		acct, err := user.Lookup(u)
		if err != nil {
			return fmt.Errorf("svcctl: lookup user %q: %w", u, err)
		}
		name = "sudo"
		args = append([]string{"-u", u, "XDG_RUNTIME_DIR=/run/user/" + acct.Uid, "systemctl"}, args...)
	}

	out, err := r.run(ctx, name, args...)
	if err != nil {
		msg := string(bytes.TrimSpace(out))
		if msg != "" {
			return fmt.Errorf("svcctl: restart %s: %w: %s", r.cfg.Unit, err, msg)
		}
		return fmt.Errorf("svcctl: restart %s: %w", r.cfg.Unit, err)
	}
	return nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
