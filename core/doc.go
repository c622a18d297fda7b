// Package core contains the social account link domain: entities, contracts,
// the link manager and the token refresh scheduler. Platform clients, storage
// and transport live in adapter packages that depend on core, never the other
// way around.
package core
