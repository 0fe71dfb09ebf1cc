// Package bridge implements the native functions rule bodies use to reach
// the host:
//
//	(. <target> <method> <args>...)             queue one step
//	(.. -> <step> -> <step> ...)                queue steps as one pipeline
//	(now <instance> <method> <args>...)         call a host object now
//	(.now <target> <method> <args>...)          run one step now
//	(..now -> <step> -> <step> ...)             run a pipeline now
//
// Every function returns the FALSE symbol on a malformed call or a host
// failure. The engine session carries on either way.
package bridge
