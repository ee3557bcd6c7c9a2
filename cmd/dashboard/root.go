package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/erauner12/condoboard/internal/config"
	"github.com/erauner12/condoboard/internal/dashboard"
	"github.com/erauner12/condoboard/internal/notify"
	"github.com/erauner12/condoboard/internal/termview"
)

var (
	configPath string
	apiURL     string
	email      string
	debug      bool
	logLevel   string
)

func init() {
	rootCmd.AddCommand(residentsCmd)
	rootCmd.AddCommand(reservationsCmd)
	rootCmd.AddCommand(incidentsCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(addResidentCmd)
	rootCmd.AddCommand(updateResidentCmd)
	rootCmd.AddCommand(deleteResidentCmd)
	rootCmd.AddCommand(reserveCmd)
	rootCmd.AddCommand(cancelReservationCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(deleteEntryCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Base URL of the condominium service")
	rootCmd.PersistentFlags().StringVar(&email, "email", "", "Account email (password comes from CONDO_PASSWORD)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

var rootCmd = &cobra.Command{
	Use:           "condoboard",
	Short:         "Condominium dashboard in the terminal.",
	Long:          `Condoboard signs in to the condominium service and shows residents, reservations, incidents and the ledger.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// loadConfig resolves the file, environment and flag layers in that order
func loadConfig(realtime bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIBaseURL = apiURL
	}
	if email != "" {
		cfg.Auth.Email = email
	}
	if debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	// one-shot commands read the bootstrap load and never need pushes
	cfg.Realtime.Enabled = cfg.Realtime.Enabled && realtime

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

// openSession loads the configuration and bootstraps a dashboard session
func openSession(ctx context.Context, realtime bool) (*dashboard.Session, error) {
	cfg, err := loadConfig(realtime)
	if err != nil {
		return nil, err
	}
	return dashboard.Bootstrap(ctx, cfg)
}

// closeSession signs out with a fresh deadline so an interrupted command
// still ends its session
func closeSession(s *dashboard.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Close(ctx)
}

// withSession runs fn in a one-shot session. Every notification shown
// while fn runs is echoed to stdout.
func withSession(ctx context.Context, fn func(s *dashboard.Session) error) error {
	s, err := openSession(ctx, false)
	if err != nil {
		return err
	}

	echo := newNoticeEcho(os.Stdout)
	unsubscribe := s.Notices.Subscribe(echo.print)
	echo.print(s.Notices.Active())

	runErr := fn(s)

	// Close waits for pending confirmations, so their notices are echoed first
	closeErr := closeSession(s)
	unsubscribe()

	if runErr != nil {
		return runErr
	}
	return closeErr
}

// noticeEcho prints each notification once, in arrival order
type noticeEcho struct {
	w    io.Writer
	mu   sync.Mutex
	last int64
}

func newNoticeEcho(w io.Writer) *noticeEcho {
	return &noticeEcho{w: w}
}

func (e *noticeEcho) print(active []notify.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fresh []notify.Notification
	for _, n := range active {
		if n.ID > e.last {
			fresh = append(fresh, n)
			e.last = n.ID
		}
	}
	termview.Notices(e.w, fresh)
}

// dispatch runs a write command and waits for the service to confirm it
func dispatch(ctx context.Context, s *dashboard.Session, cmd dashboard.Command) error {
	op, err := s.Dispatch(ctx, cmd)
	if err != nil {
		return err
	}
	if err := op.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s failed: %w", op.Kind, op.Collection, err)
	}
	return nil
}
