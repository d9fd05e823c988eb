package main

import (
	"log"

	"github.com/go-electrify/dockd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("dockd: %v", err)
	}
}
