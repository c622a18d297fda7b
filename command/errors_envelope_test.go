package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social-links/core"
)

func TestLinkAccountMessage_ValidateReturnsRichError(t *testing.T) {
	err := (LinkAccountMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorValidation {
		t.Fatalf("expected %q text code, got %q", core.ErrorValidation, rich.TextCode)
	}
}

func TestDisconnectAccountMessage_UnknownPlatformCarriesPlatformCode(t *testing.T) {
	err := (DisconnectAccountMessage{UserID: "usr_1", Platform: "myspace"}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorUnsupportedPlatform {
		t.Fatalf("expected %q text code, got %q", core.ErrorUnsupportedPlatform, rich.TextCode)
	}
}

func TestLinkAccountCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *LinkAccountCommand
	err := cmd.Execute(context.Background(), LinkAccountMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
