package main

import (
	"log"

	"ticket-portal/cmd"
	_ "ticket-portal/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
