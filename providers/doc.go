// Package providers holds the platform capability matrix, the shared REST
// client base used by every platform client, the client factory and the
// OAuth refresh and revoke exchange.
//
// Platform clients live in subpackages and are registered into a Factory by
// the root package.
package providers
