// Package intake decides whether an inbound lead is accepted.
//
// A Gate runs a fixed sequence of stages. Each stage either passes the
// evaluation on or returns the reason it was rejected; the first rejection
// ends the run. External dependencies (captcha, rate windows, dedup, DNS,
// the verification provider) are consulted through small interfaces, and
// their failures are resolved by the injected Policy instead of surfacing
// to the caller.
package intake
