package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/skycourier/cmd/courier-linkd/app"
)

func main() {
	app.NewApp().Run()
}
