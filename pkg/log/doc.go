/*
Package log provides structured logging for Triad built on zerolog.

A single global logger is initialized once at process startup via Init and
shared by all packages. Child loggers carry contextual fields:

	logger := log.WithComponent("engine")
	logger.Info().Str("resource", id).Msg("resource created")

Field helpers:

  - WithComponent: tags a subsystem (engine, deploy, balancer, ...)
  - WithDeployment: tags the deployment a message belongs to
  - WithResource: tags a resource node and its kind

Console output (the default) is human readable; JSONOutput switches to
line-delimited JSON for machine consumption.
*/
package log
