package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	ResponseContains(text string) bool
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers common step definitions used across features
func RegisterSteps(ctx *godog.ScenarioContext, current func() TestContext) {
	steps := &commonSteps{current: current}

	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
}

type commonSteps struct {
	current func() TestContext
}

func (s *commonSteps) get(_ context.Context, path string) error {
	return s.current().GET(path, nil)
}

func (s *commonSteps) responseStatusShouldBe(_ context.Context, expectedStatus int) error {
	actualStatus := s.current().GetLastResponseStatus()
	if actualStatus != expectedStatus {
		return fmt.Errorf("expected status %d but got %d", expectedStatus, actualStatus)
	}
	return nil
}

func (s *commonSteps) responseShouldContain(_ context.Context, text string) error {
	if !s.current().ResponseContains(text) {
		return fmt.Errorf("response does not contain %q\nResponse: %s", text, string(s.current().GetLastResponseBody()))
	}
	return nil
}
