package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	linkcommand "github.com/goliatone/go-social-links/command"
	"github.com/goliatone/go-social-links/core"
	linkquery "github.com/goliatone/go-social-links/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "sociallinks.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "sociallinks.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "sociallinks.test.dispatch" }

type queueMessage struct{}

func (queueMessage) Type() string { return "sociallinks.test.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(linkquery.GetAccountMessage{}); err == nil {
		t.Fatalf("expected link message validation to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	sub, err := RegisterAndSubscribe(adapter, cmd)
	if err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.AddQueueResolver("missing", nil); err == nil {
		t.Fatalf("expected nil queue registry to fail")
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("sociallinks.test.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterLinkHandlers_DispatchesCommandsAndQueries(t *testing.T) {
	mutator := &stubMutator{}
	reader := &stubReader{links: []core.SocialAccountLink{{ID: "link_1", UserID: "usr_1", Platform: core.PlatformTwitter}}}

	adapter := NewRegistryAdapter(nil)
	subs, err := RegisterLinkHandlers(adapter, LinkServices{Mutator: mutator, Reader: reader})
	if err != nil {
		t.Fatalf("register link handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 9 {
		t.Fatalf("expected 9 subscriptions, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if err := Dispatch(context.Background(), linkcommand.DisconnectAccountMessage{UserID: "usr_1", Platform: "twitter"}); err != nil {
		t.Fatalf("dispatch disconnect: %v", err)
	}
	if mutator.disconnected != "usr_1:twitter" {
		t.Fatalf("expected disconnect to reach mutator, got %q", mutator.disconnected)
	}

	links, err := Query[linkquery.GetUserAccountsMessage, []core.SocialAccountLink](context.Background(), linkquery.GetUserAccountsMessage{UserID: "usr_1"})
	if err != nil {
		t.Fatalf("query user accounts: %v", err)
	}
	if len(links) != 1 || links[0].ID != "link_1" {
		t.Fatalf("unexpected links %#v", links)
	}
}

func TestRegisterLinkHandlers_RequiresServices(t *testing.T) {
	if _, err := RegisterLinkHandlers(NewRegistryAdapter(nil), LinkServices{}); err == nil {
		t.Fatalf("expected empty services to fail")
	}
	if _, err := RegisterLinkHandlers(nil, LinkServices{Reader: &stubReader{}}); err == nil {
		t.Fatalf("expected nil adapter to fail")
	}
}

type stubMutator struct {
	disconnected string
}

func (s *stubMutator) LinkAccount(context.Context, core.LinkAccountInput) (core.SocialAccountLink, error) {
	return core.SocialAccountLink{}, nil
}

func (s *stubMutator) VerifyAccount(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func (s *stubMutator) UnlinkAccount(context.Context, core.UnlinkRequest) (core.UnlinkResult, error) {
	return core.UnlinkResult{}, nil
}

func (s *stubMutator) DisconnectAccount(_ context.Context, userID string, platformName string) (core.SocialAccountLink, error) {
	s.disconnected = userID + ":" + platformName
	return core.SocialAccountLink{UserID: userID}, nil
}

func (s *stubMutator) LinkManualAccount(context.Context, string, string, string) (core.SocialAccountLink, error) {
	return core.SocialAccountLink{}, nil
}

func (s *stubMutator) RefreshAccount(context.Context, string, core.Platform) (core.SocialAccountLink, error) {
	return core.SocialAccountLink{}, nil
}

type stubReader struct {
	links []core.SocialAccountLink
}

func (s *stubReader) GetUserAccounts(context.Context, string, core.AccountFilter) ([]core.SocialAccountLink, error) {
	return s.links, nil
}

func (s *stubReader) GetAccount(context.Context, string, string) (core.SocialAccountLink, error) {
	return core.SocialAccountLink{}, nil
}

func (s *stubReader) CheckEngagement(context.Context, core.EngagementCheck) (bool, error) {
	return false, nil
}
