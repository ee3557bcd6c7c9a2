// Package termview renders dashboard collections as terminal tables
package termview

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/erauner12/condoboard/internal/cache"
	"github.com/erauner12/condoboard/internal/dashboard"
	"github.com/erauner12/condoboard/internal/feed"
	"github.com/erauner12/condoboard/internal/notify"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	okColor      = color.New(color.FgGreen)
	lateColor    = color.New(color.FgRed, color.Bold)
	pendingColor = color.New(color.FgHiBlack)
	headingColor = color.New(color.FgCyan, color.Bold)

	tagColors = map[string]*color.Color{
		"blue":   color.New(color.FgBlue),
		"red":    color.New(color.FgRed),
		"green":  color.New(color.FgGreen),
		"orange": color.New(color.FgYellow),
		"gray":   color.New(color.FgHiBlack),
	}

	noticeColors = map[notify.Kind]*color.Color{
		notify.KindSuccess: color.New(color.FgGreen),
		notify.KindError:   color.New(color.FgRed, color.Bold),
		notify.KindInfo:    color.New(color.FgBlue),
	}
)

// Heading prints the signed-in user and the occupancy counter
func Heading(w io.Writer, name, role, units string) {
	headingColor.Fprintf(w, "%s (%s)", name, role)
	fmt.Fprintf(w, "  units %s\n", units)
}

// State prints a one-line placeholder for views that are not ready
func State(w io.Writer, v cache.View) bool {
	switch {
	case v.State == cache.StateLoading && len(v.Records) == 0:
		pendingColor.Fprintf(w, "Loading %s...\n", v.Collection)
		return true
	case v.State == cache.StateError && len(v.Records) == 0:
		lateColor.Fprintf(w, "Could not load %s: %v\n", v.Collection, v.Err)
		return true
	case len(v.Records) == 0:
		pendingColor.Fprintf(w, "No %s found.\n", v.Collection)
		return true
	}
	return false
}

func render(w io.Writer, headers []string, data [][]string, align tw.Align) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = align
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func str(r cache.Record, field string) string {
	if v, ok := r[field]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// pending marks rows whose write is not confirmed yet
func pending(r cache.Record, s string) string {
	if cache.IsTemp(cache.IDOf(r)) {
		return pendingColor.Sprint(s + " …")
	}
	return s
}

// Residents prints the residents table
func Residents(w io.Writer, v cache.View) error {
	if State(w, v) {
		return nil
	}

	var data [][]string
	for _, r := range v.Records {
		badge := dashboard.StatusBadge(str(r, "status"))
		if str(r, "status") == "ok" {
			badge = okColor.Sprint(badge)
		} else {
			badge = lateColor.Sprint(badge)
		}
		data = append(data, []string{
			pending(r, dashboard.DisplayName(str(r, "name"))),
			dashboard.RoleLabel(str(r, "role"), str(r, "type")),
			str(r, "unit"),
			str(r, "phone"),
			str(r, "email"),
			badge,
		})
	}
	return render(w, []string{"Name", "Role", "Unit", "Phone", "Email", "Status"}, data, tw.AlignLeft)
}

// Reservations prints the reservations table
func Reservations(w io.Writer, v cache.View) error {
	if State(w, v) {
		return nil
	}

	var data [][]string
	for _, r := range v.Records {
		data = append(data, []string{
			pending(r, str(r, "area")),
			str(r, "date"),
			str(r, "resident_name"),
			str(r, "status"),
			cache.IDOf(r),
		})
	}
	return render(w, []string{"Area", "Date", "Resident", "Status", "ID"}, data, tw.AlignLeft)
}

// Incidents prints the incidents table
func Incidents(w io.Writer, v cache.View) error {
	if State(w, v) {
		return nil
	}

	var data [][]string
	for _, r := range v.Records {
		status := str(r, "status")
		if status == "resolved" {
			status = okColor.Sprint(status)
		} else {
			status = lateColor.Sprint(status)
		}
		data = append(data, []string{
			pending(r, str(r, "title")),
			str(r, "reported_by"),
			status,
			cache.IDOf(r),
		})
	}
	return render(w, []string{"Title", "Reported by", "Status", "ID"}, data, tw.AlignLeft)
}

// Ledger prints the ledger with a running balance
func Ledger(w io.Writer, v cache.View) error {
	if State(w, v) {
		return nil
	}

	var (
		data    [][]string
		balance float64
	)
	for _, r := range v.Records {
		amount, _ := strconv.ParseFloat(str(r, "amount"), 64)
		sign := "+"
		c := okColor
		if str(r, "kind") == "expense" {
			amount = -amount
			sign = "-"
			c = lateColor
		}
		balance += amount
		data = append(data, []string{
			str(r, "date"),
			pending(r, str(r, "description")),
			c.Sprintf("%s%.2f", sign, abs(amount)),
			fmt.Sprintf("%.2f", balance),
		})
	}
	return render(w, []string{"Date", "Description", "Amount", "Balance"}, data, tw.AlignRight)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Feed prints the activity feed, newest first
func Feed(w io.Writer, items []feed.Item, now time.Time) error {
	if len(items) == 0 {
		pendingColor.Fprintln(w, "No recent activity.")
		return nil
	}

	var data [][]string
	for _, it := range items {
		c, ok := tagColors[it.ColorTag]
		if !ok {
			c = pendingColor
		}
		data = append(data, []string{
			c.Sprint(it.Icon),
			it.Title,
			it.Description,
			Ago(now, it.Timestamp),
		})
	}
	return render(w, []string{"", "Activity", "Details", "When"}, data, tw.AlignLeft)
}

// Ago renders how long before now t was, coarsely
func Ago(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return t.Format("2006-01-02")
	}
}

// Notices prints the visible notifications, one per line
func Notices(w io.Writer, notices []notify.Notification) {
	for _, n := range notices {
		c, ok := noticeColors[n.Kind]
		if !ok {
			c = pendingColor
		}
		c.Fprintf(w, "[%s] %s\n", n.Icon, n.Message)
	}
}
