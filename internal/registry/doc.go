// Package registry owns the table of loaded integrations and dispatches
// lifecycle and device calls to them.
//
// Architecture:
//
//	config entries ──▶ LoadIntegration ──▶ Load (factory) ──▶ handler
//	                                             │
//	                         ┌───────────────────┘
//	                         ▼
//	              ┌──────────────────────┐
//	              │  table (id ─▶ entry) │  one exclusive lock
//	              └──────────────────────┘
//	                 ▲               ▲
//	    RunRegisterPass /      SetIntegrationDeviceState /
//	    RunStartPass           RunIntegrationAction
//
// Every public method holds the table lock for its whole duration, so calls
// are totally ordered and two dispatches never run in parallel, even to
// different integrations. The lock is acquired with the caller's context.
//
// Bulk passes visit integrations in ID order and stop at the first failure;
// integrations already visited are not rolled back.
//
// With WithCallTimeout each handler call gets its own deadline. Handlers must
// return when their context is done for the bound to release the lock.
//
// # Usage
//
//	ch := event.NewChannel(cfg.Core.EventBuffer)
//	reg := registry.New(ch.Sender(),
//	    registry.WithLogger(log),
//	    registry.WithCallTimeout(cfg.GetCallTimeout()),
//	    registry.WithObserver(recorder),
//	)
//	for _, e := range entries {
//	    if err := reg.LoadIntegration(ctx, e.Plugin, integration.ID(e.ID), integration.NewConfig(e.Node)); err != nil {
//	        return err
//	    }
//	}
//	if err := reg.RunRegisterPass(ctx); err != nil {
//	    return err
//	}
//	if err := reg.RunStartPass(ctx); err != nil {
//	    return err
//	}
package registry
