// Package log provides slog loggers that mask forum credentials.
//
// The SecureHandler wraps any slog.Handler and masks:
//   - HTTP headers such as Authorization, Cookie, and Set-Cookie
//   - forum API credentials (Api-Key, User-Api-Key) and session cookies
//     (_t, _forum_session)
//   - values that look like bearer tokens, JWTs, or session cookie strings
//   - api_key and user_api_key query parameters inside logged URLs
//
// Masking also applies in verbose mode.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("fetching page",
//	    "url", "https://forum.example.com/u/alice?api_key=abc", // query value masked
//	    "cookie", "_t=abc123",                                  // masked
//	)
package log
