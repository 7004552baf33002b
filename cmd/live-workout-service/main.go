// Package main is the entry point for live-workout-service (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/psds-microservice/live-workout-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
