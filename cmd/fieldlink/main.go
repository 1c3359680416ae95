// Package main provides the entry point for the fieldlink CLI.
//
// fieldlink renders the links hidden in forum custom user fields: bare
// URLs, markdown links and entity-escaped anchors become real anchors.
//
// Usage:
//
//	fieldlink render profile.html
//	fieldlink render https://forum.example.com/u/alice
//	fieldlink watch ./snapshots
//	fieldlink proxy --upstream https://forum.example.com
//
// See --help for all available options.
package main

// main is the entry point for fieldlink.
func main() {
	Execute()
}
