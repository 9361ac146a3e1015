// Package events delivers committed registrar events to observers outside the
// process. Sinks implement interfaces.EventSink and are passed to
// registrar.New; a failing sink is logged and never rolls back the operation.
package events
