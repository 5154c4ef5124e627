package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"roastbot/internal/ai"
	"roastbot/internal/config"
	"roastbot/internal/discord"
	"roastbot/internal/mind"
	"roastbot/internal/personality"
	"roastbot/internal/storage"
	v "roastbot/internal/version"
)

func main() {
	log.Printf("[INFO] starting %s %s", v.AppName, v.AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	store, err := storage.New(cfg.PersonalityPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()
	pstore := personality.New(store)

	limits := mind.Limits{
		EmbarrassingMoments: cfg.Mind.MaxEmbarrassingMoments,
		CodeSnippetsPerUser: cfg.Mind.MaxCodeSnippetsPerUser,
		RunningGags:         cfg.Mind.MaxRunningGags,
		SummarizedFacts:     cfg.Mind.MaxSummarizedFacts,
	}
	pressure := mind.PressureConfig{
		WarnMB:     cfg.Mind.HeapWarnMB,
		CriticalMB: cfg.Mind.HeapCriticalMB,
	}
	manager := mind.NewManager(limits, pressure, pstore)
	manager.Start()
	defer manager.Stop()

	roast := mind.NewRoastEngine(mind.RoastConfig{
		BaseChance:      cfg.Roast.BaseChance,
		MaxChance:       cfg.Roast.MaxChance,
		EnforceCooldown: cfg.Roast.EnforceCooldown,
	})
	defer roast.Stop()

	provider, err := ai.NewProvider(cfg.AIProvider)
	if err != nil {
		log.Fatal(err)
	}

	bot := discord.NewBot(cfg, manager, roast, provider, pstore)
	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] received signal %s, shutting down", s)
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Println("[ERR] bot error:", err)
		}
	}
}
