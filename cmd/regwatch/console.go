package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"hackmate/internal/registration/presenter"
)

// console prints toasts and views for a terminal. It implements the session's
// Notifier and Navigator.
type console struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
	last   string
}

func newConsole(out io.Writer, logger *slog.Logger) *console {
	return &console{out: out, logger: logger, done: make(chan struct{})}
}

func (c *console) Success(msg string) {
	c.printf("✓ %s\n", msg)
}

func (c *console) Error(msg string) {
	c.printf("✗ %s\n", msg)
}

func (c *console) Registered(eventID string) {
	c.logger.Info("participant registered", "event_id", eventID)
	c.once.Do(func() { close(c.done) })
}

// registered is closed once the participant is registered.
func (c *console) registered() <-chan struct{} {
	return c.done
}

// render prints v unless it is identical to the last view printed.
func (c *console) render(v presenter.View) {
	text := formatView(v)
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == c.last {
		return
	}
	c.last = text
	fmt.Fprint(c.out, text)
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func formatView(v presenter.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", v.Status, v.Banner.Title)
	if v.Banner.Message != "" {
		fmt.Fprintf(&b, "  %s\n", v.Banner.Message)
	}
	if v.OrderID != "" {
		fmt.Fprintf(&b, "  order:   %s\n", v.OrderID)
	}
	if v.Fee != "" {
		fmt.Fprintf(&b, "  fee:     %s\n", v.Fee)
	}
	if v.Venue != "" {
		fmt.Fprintf(&b, "  venue:   %s\n", v.Venue)
	}
	if v.LastChecked != "" {
		fmt.Fprintf(&b, "  checked: %s\n", v.LastChecked)
	}
	if v.Primary.Visible {
		state := "enabled"
		if !v.Primary.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(&b, "  action:  %s (%s)\n", v.Primary.Label, state)
	}
	return b.String()
}
