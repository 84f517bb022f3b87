// Command regwatch runs one registration session from a terminal. It shows
// the participant's status for a hackathon, optionally submits a payment
// proof, and keeps polling until the participant is registered or the
// process is interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"hackmate/internal/audit"
	"hackmate/internal/hackathon"
	"hackmate/internal/platform/config"
	"hackmate/internal/platform/httpserver"
	"hackmate/internal/platform/logger"
	"hackmate/internal/platform/metrics"
	"hackmate/internal/platform/tracer"
	"hackmate/internal/registration/client"
	"hackmate/internal/registration/models"
	"hackmate/internal/registration/service"
)

const readyTimeout = 15 * time.Second

var errDone = errors.New("watch finished")

type options struct {
	eventID   string
	token     string
	identity  models.Participant
	proofPath string
	reference string
	once      bool
	check     bool
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("regwatch", flag.ContinueOnError)
	var o options
	fs.StringVar(&o.eventID, "event", getenv("HACKMATE_EVENT_ID", "codeyudh-2026"), "Hackathon ID")
	fs.StringVar(&o.token, "token", os.Getenv("HACKMATE_TOKEN"), "Participant bearer token")
	fs.StringVar(&o.identity.ID, "participant-id", os.Getenv("HACKMATE_PARTICIPANT_ID"), "Participant ID (token subject)")
	fs.StringVar(&o.identity.Name, "name", os.Getenv("HACKMATE_NAME"), "Participant name")
	fs.StringVar(&o.identity.Email, "email", os.Getenv("HACKMATE_EMAIL"), "Participant email")
	fs.StringVar(&o.identity.Phone, "phone", os.Getenv("HACKMATE_PHONE"), "Participant phone")
	fs.StringVar(&o.proofPath, "proof", "", "Payment screenshot to submit")
	fs.StringVar(&o.reference, "reference", "", "Transaction reference (generated if empty)")
	fs.BoolVar(&o.once, "once", false, "Print the current status and exit")
	fs.BoolVar(&o.check, "check", false, "Force a status re-check after the first read")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.identity.ID == "" || o.token == "" {
		return o, errors.New("-participant-id and -token are required")
	}
	o.identity.Token = o.token
	return o, nil
}

func main() {
	config.LoadDotEnv()
	cfg := config.ClientFromEnv()
	log := logger.New(cfg.LogLevel)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("regwatch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Client, opts options, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	journal := audit.NewPublisher(audit.NewInMemoryStore(), audit.WithAsyncBuffer(64), audit.WithPublisherLogger(log))
	defer journal.Close()

	backend := client.New(client.Config{
		BaseURL: cfg.BackendURL,
		Token:   opts.token,
		Timeout: cfg.RequestTimeout,
		Tracer:  tracer.NewOTel(),
		Metrics: m,
		Logger:  log,
	})
	out := newConsole(os.Stdout, log)

	session, err := service.New(service.Config{
		Participant:           opts.identity,
		EventID:               opts.eventID,
		PaymentPollInterval:   cfg.PaymentPollInterval,
		DetailRefreshInterval: cfg.DetailRefreshInterval,
		DegradedPollInterval:  cfg.DegradedPollInterval,
		MaxProofBytes:         cfg.MaxProofBytes,
	}, backend,
		service.WithHackathonSource(hackathon.NewFetcher(backend, tracer.NewOTel())),
		service.WithNotifier(out),
		service.WithNavigator(out),
		service.WithAuditPublisher(journal),
		service.WithLogger(log),
		service.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		srv := httpserver.New(cfg.MetricsAddr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		g.Go(func() error { return httpserver.ListenAndServe(gctx, srv, log) })
	}

	// watch ends with errDone so the errgroup context also stops the metrics server.
	g.Go(func() error { return watch(gctx, session, out, opts) })
	if err := g.Wait(); !errors.Is(err, errDone) {
		return err
	}
	return nil
}

func watch(ctx context.Context, session *service.Session, out *console, opts options) error {
	unsubscribe := session.Subscribe(func(models.Snapshot) { out.render(session.View()) })
	defer unsubscribe()

	if err := session.Mount(ctx); err != nil {
		return err
	}
	defer session.Unmount()

	if err := waitFor(ctx, func() bool { return session.Snapshot().HasChecked() }); err != nil {
		return err
	}
	out.render(session.View())

	if opts.check {
		if _, err := session.ForceRecheck(ctx); err != nil {
			return err
		}
	}
	if opts.proofPath != "" {
		if err := submit(ctx, session, opts); err != nil {
			return err
		}
	}
	if opts.once {
		return errDone
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-out.registered():
			out.render(session.View())
			return errDone
		case <-ticker.C:
			out.render(session.View())
		}
	}
}

func submit(ctx context.Context, session *service.Session, opts options) error {
	data, err := os.ReadFile(opts.proofPath)
	if err != nil {
		return fmt.Errorf("read proof: %w", err)
	}
	// Details carry the fee; submitting before they arrive would send 0.
	if err := waitFor(ctx, func() bool { return session.Details() != nil }); err != nil {
		return fmt.Errorf("hackathon details unavailable: %w", err)
	}

	f := session.Form()
	if opts.reference != "" {
		f.SetTransactionReference(opts.reference)
	}
	if _, err := f.SelectImage(models.ProofImage{
		Filename:    filepath.Base(opts.proofPath),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}); err != nil {
		return err
	}
	return session.Submit(ctx)
}

func waitFor(ctx context.Context, cond func() bool) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
