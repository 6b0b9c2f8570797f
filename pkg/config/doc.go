/*
Package config loads deployment manifests and holds the fixed
configuration values shared across the system.

A manifest is a small YAML document:

	name: demo
	image: registry.example.com/app:v1
	network: prod-vpc        # optional, defaults to the provider default
	mountPath: /mnt/app      # optional
	weights:                 # optional, default 1 each
	  vm: 1
	  service: 2
	  function: 0

Weights are pointers internally so an explicit 0 (a fully drained
target) is distinguishable from an omitted value. Validation rejects a
manifest whose weights are all zero: a splitter with no positive-weight
target is useless.

The constants here (service port, listener port, storage port, mount
path, mount-path environment variable) are the single shared source for
every worker variant and the splitter; nothing else in the tree hardcodes
them.
*/
package config
