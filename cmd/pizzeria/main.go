package main

import (
	"log"

	"pizzeria/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("pizzeria failed: %v", err)
	}
}
