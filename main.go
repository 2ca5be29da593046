package main

import (
	"context"
	"flag"
	"log"

	"main/config"
	"main/launch"
)

func main() {
	noTray := flag.Bool("no-tray", false, "run without the system tray icon")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}

	if *noTray {
		if err := launch.Run(context.Background(), cfg); err != nil {
			log.Fatal(err)
		}
		return
	}
	launch.StartProgramme(cfg)
}
