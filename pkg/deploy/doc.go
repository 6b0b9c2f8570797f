/*
Package deploy composes the full deployment lifecycle. A deployment is
one shared storage identity, three compute workers mounting it at the
same path, storage access grants for each worker, and one weighted
traffic splitter across all three, declared as a single resource graph
and applied atomically.

The unit of success is the whole deployment: if any resource fails to
provision, the attempt is fatal, no endpoint is reported, and no record
is persisted. Destroy replays a persisted record in reverse creation
order.
*/
package deploy
