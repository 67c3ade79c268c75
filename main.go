package main

import (
	"log"
	"os"

	"github.com/slack-go/slack"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	os.MkdirAll(cfg.DataDir, 0755)

	httpClient := newExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
		slack.OptionHTTPClient(httpClient),
	)

	StartDailyScheduler(cfg, db, api, httpClient)

	log.Println("Starting Contact Compliance Watch Bot...")
	if err := StartSlackBot(cfg, db, api, httpClient); err != nil {
		log.Fatalf("Slack bot error: %v", err)
	}
}
