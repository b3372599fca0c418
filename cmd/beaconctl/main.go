package main

import (
	"log"

	"github.com/beaconhq/beacon/cmd/beaconctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
