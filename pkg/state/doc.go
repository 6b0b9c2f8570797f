// Package state persists deployment records in an embedded BoltDB
// database. A record captures everything needed to destroy a deployment
// later: the provisioned resources in creation order with their provider
// handles, plus the resolved public endpoint. Records are written only
// after a deployment fully succeeds; a failed deployment leaves no
// record behind.
package state
