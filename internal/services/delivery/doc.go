// Package delivery brings envelopes and typing signals into open
// conversations. Catch-up goes through a history fetch; everything after
// that arrives over a live server-push stream. At most one live
// subscription exists per conversation.
package delivery
