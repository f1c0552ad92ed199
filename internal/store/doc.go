// Package store implements the shared TTL store on Redis: admission
// windows, duplicate identities and the placement blacklist. Every key it
// writes carries an expiry; nothing on the request path deletes.
package store
