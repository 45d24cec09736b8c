package main

// Build metadata, overridden at link time:
//
//	go build -ldflags "-X main.Version=$(git describe --tags)"
var Version = "dev"
