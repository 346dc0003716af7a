package main

import (
	"context"
	"log"
	"os"

	"helpdesk/cmd"
)

func main() {
	if err := cmd.ServerCli().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
