// Package cqrs provides the command side: commands, a synchronous command bus
// with exactly one handler per command type, and the access policies the bus
// consults before a handler runs.
//
//	bus, err := cqrs.NewBus(log, []cqrs.Registration{
//	    cqrs.For[CreatePool](h.createPool, cqrs.OpenAccess()),
//	    cqrs.For[DeletePool](h.deletePool, cqrs.RequireCaller()),
//	})
//	err = bus.Handle(cqrs.WithCaller(ctx, cqrs.Caller{ID: "alice"}), DeletePool{ID: id})
//
// Commands are routed by CommandType() when they implement it, otherwise by
// their Go type name. The caller in the context is what policies and handlers
// see as the acting user.
package cqrs
