/*
Package events provides a lightweight broker for provisioning progress
events.

The engine publishes an event per resource transition (declared,
creating, created, failed, deleted) and per deployment outcome. The CLI
subscribes to stream progress to the terminal while an apply runs.

Delivery is best-effort: a subscriber whose buffer is full misses
events rather than blocking provisioning.
*/
package events
