// Package delivery implements change notification strategies.
//
// A strategy watches the server for sync version movement and wakes the
// client with a hint when something changed. Hints carry no entity data;
// the client always follows up with a full sync cycle, so a lost or
// duplicated hint is harmless.
//
// Three strategies are available: SSE (a persistent server-sent events
// stream), polling (adaptive-backoff checks of the sync status
// endpoint), and auto (SSE with transparent fallback to polling).
package delivery
