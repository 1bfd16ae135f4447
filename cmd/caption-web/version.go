package main

// Build-time version identity, injected via -ldflags:
//
//	go build -ldflags="-X main.commitHash=$(git rev-parse --short HEAD)"
var commitHash = "dev"
