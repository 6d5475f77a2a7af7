// Package main is the entry point for the Anatomy & Physiology exam bot.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/exambot/cmd/exambot/app"
)

func main() {
	app.NewApp().Run()
}
