// Package dashboard is the controller of the condominium dashboard: it opens
// the session, owns the session-scoped cache, and turns typed commands into
// optimistic cache mutations.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/erauner12/condoboard/internal/cache"
	"github.com/erauner12/condoboard/internal/client"
	"github.com/erauner12/condoboard/internal/config"
	"github.com/erauner12/condoboard/internal/notify"
	"github.com/erauner12/condoboard/internal/push"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Collections loaded at bootstrap
const (
	Residents    = "residents"
	Reservations = "reservations"
	Incidents    = "incidents"
	Ledger       = "ledger"
)

// AllCollections in display order
var AllCollections = []string{Residents, Reservations, Incidents, Ledger}

// Session is one signed-in dashboard. It is created by Bootstrap and
// ends with Close (or the Logout command).
type Session struct {
	cfg    *config.Config
	client *client.Client

	// Cache holds the collections of this session only
	Cache *cache.Store
	// Notices is the user feedback queue; failed mutations land here
	Notices *notify.Queue

	User    client.User
	Profile cache.Record // nil when the account has no resident profile
	Manager bool

	stopPush context.CancelFunc
	wg       sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Bootstrap signs in (when credentials are configured), loads the caller's
// profile, and fills the cache. Any failure to establish who the caller is
// returns an error matching ErrLoginRequired.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Session, error) {
	c := client.New(cfg.APIBaseURL, cfg.APIKey, cfg.RequestTimeout())

	if cfg.HasCredentials() {
		if _, err := c.Auth.Login(ctx, cfg.Auth.Email, cfg.Auth.Password); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoginRequired, err)
		}
	}

	user, err := c.Auth.CurrentUser(ctx)
	if err != nil {
		// Revoke the session Login may have opened
		if lerr := c.Auth.Logout(ctx); lerr != nil {
			log.Warn().Err(lerr).Msg("failed to revoke session after bootstrap failure")
		}
		if client.IsUnauthorized(err) {
			return nil, ErrLoginRequired
		}
		return nil, fmt.Errorf("%w: load session: %w", ErrLoginRequired, err)
	}

	s := &Session{
		cfg:     cfg,
		client:  c,
		Notices: notify.NewQueue(cfg.ToastTTL()),
		User:    *user,
	}

	profile, err := c.Collection(Residents).FindOne(ctx, "email", user.Email)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("email", user.Email).Msg("failed to load resident profile")
	case profile == nil:
		log.Warn().Str("email", user.Email).Msg("signed in without a resident profile")
	default:
		s.Profile = profile
		role, _ := profile["role"].(string)
		s.Manager = IsManager(role)
	}

	c.SetListOptions(Residents, client.ListOpts{Order: "created_at.desc"})
	c.SetListOptions(Ledger, client.ListOpts{Order: "date.asc"})

	s.Cache = cache.New(c, cache.Options{
		Reporter: s.Notices,
		Describe: Describe,
		Insert:   map[string]cache.Position{Ledger: cache.Tail},
		Timeout:  cfg.RequestTimeout(),
	})

	s.load(ctx)

	if cfg.Realtime.Enabled {
		s.startPush()
	}

	log.Info().
		Str("userId", user.ID).
		Bool("manager", s.Manager).
		Msg("dashboard session started")
	return s, nil
}

// load fills every collection in parallel. A collection that fails to load
// is reported and left empty; the session stays usable.
func (s *Session) load(ctx context.Context) {
	var g errgroup.Group
	for _, name := range AllCollections {
		g.Go(func() error {
			if err := s.Cache.Refresh(ctx, name); err != nil {
				s.Notices.Error("Could not load " + name + ".")
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("initial load incomplete")
	}
}

func (s *Session) startPush() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopPush = cancel

	sub := push.NewSubscriber(push.Options{
		URL:     strings.TrimRight(s.cfg.APIBaseURL, "/") + s.cfg.Realtime.Path,
		Stream:  s.cfg.Realtime.Stream,
		Headers: map[string]string{"apikey": s.cfg.APIKey},
	})
	sub.On(push.Any, push.Any, push.Invalidator(s.Cache))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := sub.Run(ctx); err != nil {
			log.Error().Err(err).Msg("change stream stopped")
		}
	}()
}

// Client returns the remote client of the session
func (s *Session) Client() *client.Client {
	return s.client
}

// Close stops the change stream, waits for in-flight writes, and signs out
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopPush != nil {
			s.stopPush()
		}
		s.Cache.Close()
		s.wg.Wait()
		s.Notices.Close()

		if err := s.client.Auth.Logout(ctx); err != nil {
			s.closeErr = fmt.Errorf("logout: %w", err)
			return
		}
		log.Info().Str("userId", s.User.ID).Msg("dashboard session closed")
	})
	return s.closeErr
}

// Describe turns a failed mutation into the message shown to the user
func Describe(f cache.Failure) string {
	noun := strings.TrimSuffix(f.Collection, "s")
	if f.Collection == Ledger {
		noun = "ledger entry"
	}

	if client.IsConstraintViolation(f.Err) && f.Collection == Residents {
		return "A resident with this email already exists"
	}

	var apiErr *client.APIError
	detail := "unexpected error"
	switch {
	case errors.As(f.Err, &apiErr) && apiErr.Code == client.CodeForbidden:
		return "You do not have permission to do that."
	case client.IsNotFound(f.Err):
		detail = "it no longer exists"
	case errors.As(f.Err, &apiErr) && apiErr.Message != "":
		detail = apiErr.Message
	case client.IsUnauthorized(f.Err):
		detail = "your session has expired"
	}

	verb := map[cache.Kind]string{
		cache.KindCreate: "save",
		cache.KindUpdate: "update",
		cache.KindDelete: "delete",
	}[f.Kind]
	return fmt.Sprintf("Could not %s %s: %s", verb, noun, detail)
}
