/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
)

func main() {
	// Ctrl-C cancels requests in flight; files already written stay.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := Execute(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
}
