package main

import (
	"log"
	"os"

	"admin-auth/internal/build"
	"admin-auth/internal/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "admin-auth"
	app.Version = build.Version
	app.Usage = "Session, CSRF and third-party sign-in server for the admin dashboard"

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
