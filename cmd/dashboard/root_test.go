package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/erauner12/condoboard/internal/notify"
)

func init() {
	color.NoColor = true
}

func TestNoticeEchoPrintsEachNoticeOnce(t *testing.T) {
	var buf bytes.Buffer
	echo := newNoticeEcho(&buf)

	first := notify.Notification{ID: 1, Kind: notify.KindSuccess, Message: "Resident registered.", Icon: "circle-check"}
	second := notify.Notification{ID: 2, Kind: notify.KindError, Message: "Could not save reservation", Icon: "circle-exclamation"}

	echo.print([]notify.Notification{first})
	echo.print([]notify.Notification{first, second})
	echo.print([]notify.Notification{second})
	echo.print(nil)

	out := buf.String()
	if n := strings.Count(out, "Resident registered."); n != 1 {
		t.Errorf("expected first notice once, got %d in %q", n, out)
	}
	if n := strings.Count(out, "Could not save reservation"); n != 1 {
		t.Errorf("expected second notice once, got %d in %q", n, out)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug": "debug",
		"warn":  "warn",
		"error": "error",
		"":      "info",
		"loud":  "info",
	}
	for in, want := range cases {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
