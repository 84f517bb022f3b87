package e2e

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/google/uuid"

	"hackmate/e2e/steps/admin"
	"hackmate/e2e/steps/common"
	"hackmate/e2e/steps/registration"
	"hackmate/internal/registration/models"
)

// RegisterSteps registers all step definitions. current returns the context
// of the running scenario.
func RegisterSteps(ctx *godog.ScenarioContext, current func() *TestContext) {
	ctx.Step(`^the dev backend is running with the demo hackathon$`, func(context.Context) error {
		if current().Server == nil {
			return fmt.Errorf("dev backend not started")
		}
		return nil
	})
	ctx.Step(`^I am signed in as "([^"]*)"$`, func(_ context.Context, email string) error {
		return current().SignIn(models.Participant{
			ID:    uuid.NewString(),
			Email: email,
			Name:  "E2E Participant",
			Phone: "9876543210",
		})
	})

	common.RegisterSteps(ctx, func() common.TestContext { return current() })
	admin.RegisterSteps(ctx, func() admin.TestContext { return current() })
	registration.RegisterSteps(ctx, func() registration.TestContext { return current() })
}
