package main

// commitHash is overridden during the container build:
//
//	go build -ldflags="-X main.commitHash=${COMMIT_HASH}"
var commitHash = "dev"
