package main

import (
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/app"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
