package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/skycourier/cmd/courier-server/app"
)

func main() {
	app.NewApp().Run()
}
