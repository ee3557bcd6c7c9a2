package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/erauner12/condoboard/internal/cache"
	"github.com/erauner12/condoboard/internal/dashboard"
	"github.com/erauner12/condoboard/internal/notify"
	"github.com/erauner12/condoboard/internal/termview"
)

var residentsCmd = &cobra.Command{
	Use:   "residents",
	Short: "List residents.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			termview.Heading(os.Stdout, s.ProfileName(), s.ProfileRole(), s.OccupiedUnits())
			return termview.Residents(os.Stdout, s.Cache.Peek(dashboard.Residents))
		})
	},
}

var reservationsCmd = &cobra.Command{
	Use:   "reservations",
	Short: "List common-area reservations.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return termview.Reservations(os.Stdout, s.Cache.Peek(dashboard.Reservations))
		})
	},
}

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "List reported incidents.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			return termview.Incidents(os.Stdout, s.Cache.Peek(dashboard.Incidents))
		})
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show the ledger and its totals.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			if err := termview.Ledger(os.Stdout, s.Cache.Peek(dashboard.Ledger)); err != nil {
				return err
			}
			sum, err := s.LedgerSummary(cmd.Context())
			if err != nil {
				log.Warn().Err(err).Msg("failed to load ledger summary")
				return nil
			}
			fmt.Fprintf(os.Stdout, "Income %.2f  Expense %.2f  Balance %.2f\n", sum.Income, sum.Expense, sum.Balance)
			return nil
		})
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show recent activity.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(s *dashboard.Session) error {
			termview.Heading(os.Stdout, s.ProfileName(), s.ProfileRole(), s.OccupiedUnits())
			return termview.Feed(os.Stdout, s.Feed(), time.Now())
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [section]",
	Short: "Keep a section on screen and redraw it as the service changes.",
	Long: `Watch shows one section (feed, residents, reservations, incidents or ledger)
and redraws it whenever a change arrives over the realtime channel or a
notification appears. Stop with Ctrl-C.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"feed", dashboard.Residents, dashboard.Reservations, dashboard.Incidents, dashboard.Ledger},
	RunE: func(cmd *cobra.Command, args []string) error {
		section := "feed"
		if len(args) == 1 {
			section = args[0]
		}
		s, err := openSession(cmd.Context(), true)
		if err != nil {
			return err
		}
		tty := term.IsTerminal(int(os.Stdout.Fd()))
		werr := watch(cmd.Context(), os.Stdout, tty, s, section)
		if err := closeSession(s); err != nil && werr == nil {
			werr = err
		}
		return werr
	},
}

// watch redraws section on every cache or notice change until ctx ends.
// On a terminal each redraw replaces the previous one.
func watch(ctx context.Context, w io.Writer, tty bool, s *dashboard.Session, section string) error {
	changed := make(chan struct{}, 1)
	poke := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	stopCache := s.Cache.Subscribe("", func(cache.View) { poke() })
	defer stopCache()
	stopNotices := s.Notices.Subscribe(func([]notify.Notification) { poke() })
	defer stopNotices()

	poke()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := draw(w, tty, s, section); err != nil {
				return err
			}
		}
	}
}

func draw(w io.Writer, tty bool, s *dashboard.Session, section string) error {
	if tty {
		fmt.Fprint(w, "\033[H\033[2J")
	} else {
		fmt.Fprintln(w, "---", time.Now().Format(time.TimeOnly))
	}
	termview.Heading(w, s.ProfileName(), s.ProfileRole(), s.OccupiedUnits())

	var err error
	switch section {
	case dashboard.Residents:
		err = termview.Residents(w, s.Cache.Peek(dashboard.Residents))
	case dashboard.Reservations:
		err = termview.Reservations(w, s.Cache.Peek(dashboard.Reservations))
	case dashboard.Incidents:
		err = termview.Incidents(w, s.Cache.Peek(dashboard.Incidents))
	case dashboard.Ledger:
		err = termview.Ledger(w, s.Cache.Peek(dashboard.Ledger))
	default:
		err = termview.Feed(w, s.Feed(), time.Now())
	}
	if err != nil {
		return err
	}
	termview.Notices(w, s.Notices.Active())
	return nil
}
