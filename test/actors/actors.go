// Package actors holds the concurrent workloads driven by the stress test.
// Each actor loops until stop is closed or ctx ends.
package actors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"jobportal/auth"
)

// Registrant keeps registering accounts drawn from a small shared pool of
// emails so that concurrent registrants collide on the same address.
func Registrant(ctx context.Context, svc *auth.Service, emails []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		email := emails[rand.Intn(len(emails))]
		_, err := svc.Register(ctx, auth.RegisterRequest{
			FullName:    "Stress Registrant",
			Email:       email,
			PhoneNumber: "9876543210",
			Password:    "stress-password",
			Role:        auth.RoleSeeker,
		})
		if err != nil && !errors.Is(err, auth.ErrDuplicateEmail) && !Transient(err) {
			return fmt.Errorf("registrant %s: %w", email, err)
		}
		time.Sleep(time.Duration(5+rand.Intn(10)) * time.Millisecond)
	}
}

// LastWrite records the most recent value an editor saw committed.
type LastWrite struct {
	mu    sync.Mutex
	value string
}

func (l *LastWrite) set(v string) {
	l.mu.Lock()
	l.value = v
	l.mu.Unlock()
}

// Value returns the last committed value.
func (l *LastWrite) Value() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Field selects which profile field a ProfileEditor owns.
type Field int

const (
	FieldBio Field = iota
	FieldSkills
	FieldFullName
)

// ProfileEditor repeatedly rewrites a single profile field of userID. Editors
// owning different fields of the same user must never clobber each other.
func ProfileEditor(ctx context.Context, svc *auth.Service, userID string, field Field, last *LastWrite, stop <-chan struct{}) error {
	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		value := fmt.Sprintf("v%d-%d", field, n)
		var upd auth.ProfileUpdate
		switch field {
		case FieldBio:
			upd.Bio = &value
		case FieldSkills:
			upd.Skills = &value
		case FieldFullName:
			upd.FullName = &value
		}

		if _, err := svc.UpdateProfile(ctx, userID, upd); err != nil {
			if Transient(err) {
				continue
			}
			return fmt.Errorf("editor %d: %w", field, err)
		}
		last.set(value)
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}
}

// LoginProber logs in as email and checks the issued token resolves back to
// the same user.
func LoginProber(ctx context.Context, svc *auth.Service, email, password string, role auth.Role, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		res, err := svc.Login(ctx, auth.LoginRequest{Email: email, Password: password, Role: role})
		if err != nil {
			if Transient(err) {
				continue
			}
			return fmt.Errorf("login prober: %w", err)
		}
		claims, err := svc.Tokens().Verify(res.Token)
		if err != nil {
			return fmt.Errorf("login prober: verify: %w", err)
		}
		if claims.UserID != res.User.ID {
			return fmt.Errorf("login prober: token for %s resolved to %s", res.User.ID, claims.UserID)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Transient reports errors caused by the chaos actor or shutdown rather than
// by the code under test.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 57P01 admin_shutdown, 08xxx connection exceptions.
		return pgErr.Code == "57P01" || pgErr.Code[:2] == "08"
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err) || isClosedConn(err)
}

func isClosedConn(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "conn closed")
}
