// Package tracker owns the feed's post collection together with the client's
// reaction and ownership sets.
//
// Every mutation follows the same shape: decide from current state whether a
// remote call is needed, issue it without holding the lock, then apply the
// server's answer and persist the whole record once. Reactions move through
// an explicit transition table keyed by (Reaction, Event); a failed call
// leaves the sets exactly as they were.
package tracker
