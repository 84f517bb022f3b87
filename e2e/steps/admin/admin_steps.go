package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AdminPUT(path string, body any) error
	PUT(path string, body any, headers map[string]string) error
	CurrentOrderID() string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers reviewer and organiser steps.
func RegisterSteps(ctx *godog.ScenarioContext, current func() TestContext) {
	steps := &adminSteps{current: current}

	ctx.Step(`^the reviewer marks my order "([^"]*)"$`, steps.reviewOrder)
	ctx.Step(`^the reviewer marks my order "([^"]*)" with message "([^"]*)"$`, steps.reviewOrderWithMessage)
	ctx.Step(`^the organiser closes registration for "([^"]*)"$`, steps.closeRegistration)
	ctx.Step(`^I try to review my own order as "([^"]*)" without the admin token$`, steps.reviewWithoutToken)
}

type adminSteps struct {
	current func() TestContext
}

func (s *adminSteps) reviewOrder(ctx context.Context, status string) error {
	return s.reviewOrderWithMessage(ctx, status, "")
}

func (s *adminSteps) reviewOrderWithMessage(_ context.Context, status, message string) error {
	tc := s.current()
	orderID := tc.CurrentOrderID()
	if orderID == "" {
		return fmt.Errorf("no order to review")
	}
	if err := tc.AdminPUT("/admin/registrations/"+orderID, map[string]string{
		"status":  status,
		"message": message,
	}); err != nil {
		return err
	}
	return expectOK(tc)
}

func (s *adminSteps) closeRegistration(_ context.Context, hackathonID string) error {
	tc := s.current()
	if err := tc.AdminPUT("/admin/hackathons/"+hackathonID, map[string]any{
		"name":            "CodeYudh 2026",
		"registrationFee": 499,
		"venue":           "Main Auditorium",
		"status":          "registration_closed",
	}); err != nil {
		return err
	}
	return expectOK(tc)
}

func (s *adminSteps) reviewWithoutToken(_ context.Context, status string) error {
	tc := s.current()
	return tc.PUT("/admin/registrations/"+tc.CurrentOrderID(), map[string]string{"status": status}, nil)
}

func expectOK(tc TestContext) error {
	if tc.GetLastResponseStatus() != http.StatusOK {
		return fmt.Errorf("admin call failed with %d: %s", tc.GetLastResponseStatus(), tc.GetLastResponseBody())
	}
	return nil
}
