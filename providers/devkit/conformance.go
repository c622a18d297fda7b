package devkit

import (
	"context"
	"fmt"

	"github.com/goliatone/go-social-links/core"
)

// ValidatePlatformClientConformance checks the lifecycle rules every client
// shares: Close is idempotent and calls after Close fail as transport errors.
func ValidatePlatformClientConformance(ctx context.Context, client core.PlatformClient) error {
	if client == nil {
		return fmt.Errorf("devkit: platform client is required")
	}
	if !client.Platform().Valid() {
		return fmt.Errorf("devkit: platform client reports unknown platform %q", client.Platform())
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("devkit: first close: %w", err)
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("devkit: close is not idempotent: %w", err)
	}
	if _, err := client.GetUserProfile(ctx, ""); !core.IsTransportFailure(err) {
		return fmt.Errorf("devkit: expected transport failure after close, got %v", err)
	}
	if _, err := client.VerifyAccountOwnership(ctx, "any"); !core.IsTransportFailure(err) {
		return fmt.Errorf("devkit: expected transport failure from ownership after close, got %v", err)
	}
	return nil
}
