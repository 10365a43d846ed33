// Package clock provides a tiny time abstraction.
//
// Challenge windows are evaluated against a Clocker rather than time.Now so
// expiry can be exercised deterministically: production wiring uses
// TimeClocker, tests use Fixed and advance it explicitly.
package clock
