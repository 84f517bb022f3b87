package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hackmate/internal/devbackend"
	"hackmate/internal/hackathon"
	"hackmate/internal/platform/config"
	"hackmate/internal/platform/logger"
	"hackmate/internal/platform/metrics"
	"hackmate/internal/registration/client"
	"hackmate/internal/registration/models"
	"hackmate/internal/registration/service"
	"hackmate/pkg/testutil"
)

const (
	adminToken   = "e2e-admin-token"
	pollInterval = 25 * time.Millisecond
	waitTimeout  = 3 * time.Second
)

// toasts records what the session showed the participant.
type toasts struct {
	mu         sync.Mutex
	successes  []string
	errors     []string
	navigated  int
	navigateTo string
}

func (t *toasts) Success(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes = append(t.successes, msg)
}

func (t *toasts) Error(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, msg)
}

func (t *toasts) Registered(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.navigated++
	t.navigateTo = eventID
}

// TestContext holds state between test steps
type TestContext struct {
	App        *devbackend.App
	Server     *httptest.Server
	HTTPClient *http.Client

	LastResponse     *http.Response
	LastResponseBody []byte
	LastErr          error

	Participant models.Participant
	Backend     *client.Client
	Session     *service.Session
	Toasts      *toasts
	EventID     string
}

// NewTestContext boots a dev backend with the demo hackathon.
func NewTestContext() (*TestContext, error) {
	app, err := devbackend.NewApp(config.DevBackend{
		JWTSigningKey: "e2e-signing-key",
		AdminToken:    adminToken,
		MaxProofBytes: config.DefaultMaxProofBytes,
	}, logger.Discard(), prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	return &TestContext{
		App:        app,
		Server:     httptest.NewServer(app.Router),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Toasts:     &toasts{},
		EventID:    devbackend.DemoHackathonID,
	}, nil
}

// Close stops the session and the server.
func (tc *TestContext) Close() {
	if tc.Session != nil {
		tc.Session.Unmount()
	}
	if tc.Server != nil {
		tc.Server.Close()
	}
}

// SignIn issues a token for p and points the registration client at the server.
func (tc *TestContext) SignIn(p models.Participant) error {
	token, err := tc.App.Tokens.IssueParticipantToken(p)
	if err != nil {
		return err
	}
	p.Token = token
	tc.Participant = p
	tc.Backend = tc.clientFor(p)
	return nil
}

func (tc *TestContext) clientFor(p models.Participant) *client.Client {
	return client.New(client.Config{BaseURL: tc.Server.URL, Token: p.Token, Timeout: 2 * time.Second, Logger: logger.Discard()})
}

// OpenSession builds and mounts a session for the signed-in participant.
func (tc *TestContext) OpenSession() error {
	session, err := service.New(service.Config{
		Participant:           tc.Participant,
		EventID:               tc.EventID,
		PaymentPollInterval:   pollInterval,
		DetailRefreshInterval: pollInterval,
		DegradedPollInterval:  2 * pollInterval,
		MaxProofBytes:         config.DefaultMaxProofBytes,
	}, tc.Backend,
		service.WithHackathonSource(newFetcher(tc.Backend)),
		service.WithNotifier(tc.Toasts),
		service.WithNavigator(tc.Toasts),
		service.WithLogger(logger.Discard()),
		service.WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	if err != nil {
		return err
	}
	tc.Session = session
	if err := session.Mount(context.Background()); err != nil {
		return err
	}
	return tc.Eventually(func() bool {
		return session.Snapshot().HasChecked() && session.Details() != nil
	}, "session never loaded")
}

// Eventually polls cond until it holds or waitTimeout passes.
func (tc *TestContext) Eventually(cond func() bool, msg string) error {
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("%s within %s", msg, waitTimeout)
}

// AdminPUT sends a JSON body with the admin token.
func (tc *TestContext) AdminPUT(path string, body any) error {
	return tc.do(http.MethodPut, path, body, map[string]string{
		"X-Admin-Token":    adminToken,
		"X-Admin-Actor-ID": "e2e-reviewer",
	})
}

// PUT sends a JSON body with optional headers.
func (tc *TestContext) PUT(path string, body any, headers map[string]string) error {
	return tc.do(http.MethodPut, path, body, headers)
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, tc.Server.URL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	return strings.Contains(string(tc.LastResponseBody), text)
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}

// CurrentOrderID is the order the session currently tracks.
func (tc *TestContext) CurrentOrderID() string {
	if tc.Session == nil {
		return ""
	}
	return tc.Session.Snapshot().OrderID
}

func newFetcher(c *client.Client) *hackathon.Fetcher {
	return hackathon.NewFetcher(c, nil)
}

// RegistrationSession is the mounted session, or nil before OpenSession.
func (tc *TestContext) RegistrationSession() *service.Session {
	return tc.Session
}

// Notifications returns copies of the toasts shown so far and the number of
// navigations to the event page.
func (tc *TestContext) Notifications() (successes, errs []string, navigated int) {
	tc.Toasts.mu.Lock()
	defer tc.Toasts.mu.Unlock()
	return append([]string(nil), tc.Toasts.successes...), append([]string(nil), tc.Toasts.errors...), tc.Toasts.navigated
}

// SubmitAs submits a payment for p straight through the API, bypassing any session.
func (tc *TestContext) SubmitAs(p models.Participant, reference string) error {
	token, err := tc.App.Tokens.IssueParticipantToken(p)
	if err != nil {
		return err
	}
	p.Token = token
	_, err = tc.clientFor(p).SubmitPayment(context.Background(), &models.PaymentSubmission{
		EventID:              tc.EventID,
		ParticipantID:        p.ID,
		Name:                 p.Name,
		Phone:                p.Phone,
		Email:                p.Email,
		TransactionReference: reference,
		Amount:               devbackend.DemoHackathonFee,
		Proof:                testutil.PNGProof(1024),
		CreatedAt:            time.Now(),
	})
	return err
}

func (tc *TestContext) GetParticipant() models.Participant {
	return tc.Participant
}

func (tc *TestContext) SetLastErr(err error) {
	tc.LastErr = err
}

func (tc *TestContext) GetLastErr() error {
	return tc.LastErr
}
