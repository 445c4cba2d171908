package main

import (
	"log"
	"user-onboarding/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("user-onboarding: %v", err)
	}
}
