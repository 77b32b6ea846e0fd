// Package thread holds the per-conversation state machine and the view
// actor driving one open conversation.
//
// State keeps the ordered envelope list, reconciles optimistic entries
// against confirmed ones, deduplicates across catch-up and live
// delivery, and tracks per-message delivery status. View wraps State in
// a single goroutine fed by a typed command channel, so the composer
// and the stream never touch conversation state concurrently.
package thread
