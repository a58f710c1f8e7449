// Package gocommand bridges the identity facade onto the go-command
// registry and dispatcher so callers can drive authentication flows as
// typed messages instead of holding the service directly.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	identity "github.com/goliatone/go-identity"
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

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeCommandFunc[T any](handler command.CommandFunc[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func SubscribeQueryFunc[T any, R any](qry command.QueryFunc[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
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
	subscription := SubscribeCommand(cmd, runnerOpts...)
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
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// FacadeSubscription tracks every dispatcher subscription opened for a
// facade so the whole surface can be torn down together.
type FacadeSubscription struct {
	subscriptions []commanddispatcher.Subscription
}

func (s *FacadeSubscription) Unsubscribe() {
	if s == nil {
		return
	}
	for _, subscription := range s.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	s.subscriptions = nil
}

func (s *FacadeSubscription) add(subscription commanddispatcher.Subscription, err error) error {
	if err != nil {
		return err
	}
	s.subscriptions = append(s.subscriptions, subscription)
	return nil
}

// SubscribeFacade registers every command and query the identity facade
// exposes with the registry and subscribes each on the dispatcher. On any
// failure the subscriptions opened so far are released.
func SubscribeFacade(
	adapter *RegistryAdapter,
	facade *identity.Facade,
	runnerOpts ...runner.Option,
) (*FacadeSubscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if facade == nil {
		return nil, fmt.Errorf("gocommand: facade is required")
	}

	commands := facade.Commands()
	queries := facade.Queries()
	bundle := &FacadeSubscription{}

	wiring := []func() error{
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.Login, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.Join, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.OAuthLogin, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.RefreshSession, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.UpdateSocialTokens, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.Logout, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.DeleteAccount, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.UpdateProfile, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.UpdateAddress, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribe(adapter, commands.VerifyEmail, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribeQuery(adapter, queries.ValidateToken, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribeQuery(adapter, queries.UserInfo, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribeQuery(adapter, queries.UserProfile, runnerOpts...)) },
		func() error { return bundle.add(RegisterAndSubscribeQuery(adapter, queries.Managers, runnerOpts...)) },
	}
	for _, wire := range wiring {
		if err := wire(); err != nil {
			bundle.Unsubscribe()
			return nil, err
		}
	}
	return bundle, nil
}
