// Package fetch loads HTML documents for rendering from local files, stdin,
// or forum pages over HTTP.
//
// Requests to a forum host carry the cookie and headers configured for that
// host in the config file, so pages that need a logged-in session or an API
// key can be rendered too.
//
// Forums that are only reachable through Tor or an SSH tunnel are fetched
// through a SOCKS5 proxy with NewSOCKSTransport.
package fetch
