package gocommand

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	linkcommand "github.com/goliatone/go-social-links/command"
	linkquery "github.com/goliatone/go-social-links/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// so they can also run from a worker.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// LinkServices groups what the link handlers delegate to. A nil field skips
// the handlers that depend on it.
type LinkServices struct {
	Mutator      linkcommand.LinkMutator
	Refresher    linkcommand.TokenRefresher
	Reader       linkquery.LinkReader
	Capabilities linkquery.CapabilityReader
}

// Subscriptions tracks dispatcher subscriptions so they can be released
// together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterLinkHandlers registers and subscribes every link command and query
// against the global dispatcher. On failure nothing stays subscribed.
func RegisterLinkHandlers(adapter *RegistryAdapter, services LinkServices, runnerOpts ...runner.Option) (Subscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if services.Mutator == nil && services.Refresher == nil && services.Reader == nil && services.Capabilities == nil {
		return nil, fmt.Errorf("gocommand: at least one link service is required")
	}

	var subs Subscriptions
	var errs []error
	track := func(sub commanddispatcher.Subscription, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		subs = append(subs, sub)
	}

	if services.Mutator != nil {
		track(RegisterAndSubscribe(adapter, linkcommand.NewLinkAccountCommand(services.Mutator), runnerOpts...))
		track(RegisterAndSubscribe(adapter, linkcommand.NewVerifyAccountCommand(services.Mutator), runnerOpts...))
		track(RegisterAndSubscribe(adapter, linkcommand.NewUnlinkAccountCommand(services.Mutator), runnerOpts...))
		track(RegisterAndSubscribe(adapter, linkcommand.NewDisconnectAccountCommand(services.Mutator), runnerOpts...))
		track(RegisterAndSubscribe(adapter, linkcommand.NewLinkManualAccountCommand(services.Mutator), runnerOpts...))
		track(RegisterAndSubscribe(adapter, linkcommand.NewRefreshAccountCommand(services.Mutator), runnerOpts...))
	}
	if services.Refresher != nil {
		track(RegisterAndSubscribe(adapter, linkcommand.NewRefreshAllTokensCommand(services.Refresher), runnerOpts...))
	}
	if services.Reader != nil {
		track(RegisterAndSubscribeQuery(adapter, linkquery.NewGetUserAccountsQuery(services.Reader), runnerOpts...))
		track(RegisterAndSubscribeQuery(adapter, linkquery.NewGetAccountQuery(services.Reader), runnerOpts...))
		track(RegisterAndSubscribeQuery(adapter, linkquery.NewCheckEngagementQuery(services.Reader), runnerOpts...))
	}
	if services.Capabilities != nil {
		track(RegisterAndSubscribeQuery(adapter, linkquery.NewGetPlatformCapabilitiesQuery(services.Capabilities), runnerOpts...))
	}

	if len(errs) > 0 {
		subs.Unsubscribe()
		return nil, errors.Join(errs...)
	}
	return subs, nil
}
