/*
Package balancer declares the deployment's traffic splitter: a single
internet-facing load balancer whose one listener spreads requests across
three weighted target groups, one per compute worker variant.

Each worker variant has an incompatible target addressing mode, so each
gets its own target group: the instance target is registered by provider
identity and port, the service target is attached by the container
substrate itself, and the function target is invoked by its provider
identifier. Weights are carried verbatim into the listener's single
weighted-forward rule; a weight of zero keeps the target group declared
and registered but sends it no traffic. At least one target must carry a
positive weight or the declaration fails.
*/
package balancer
