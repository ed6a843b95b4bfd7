package main

import (
	_ "github.com/joho/godotenv/autoload"

	"github.com/mhartmann/jurypad/cmd/app"
)

func main() {
	if err := app.Start(); err != nil {
		panic(err)
	}
}
