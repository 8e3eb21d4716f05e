// Command seed fills a development database with users, ideas and votes.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/seed"
)

func main() {
	opts := seed.DefaultOptions
	flag.IntVar(&opts.Users, "users", opts.Users, "Number of users to create")
	flag.IntVar(&opts.Admins, "admins", opts.Admins, "Number of admins to create")
	flag.IntVar(&opts.Ideas, "ideas", opts.Ideas, "Number of ideas to create")
	flag.IntVar(&opts.VotesPerIdea, "votes", opts.VotesPerIdea, "Votes cast on each idea")
	flag.Float64Var(&opts.UpShare, "up-share", opts.UpShare, "Share of votes that endorse")
	flag.BoolVar(&opts.Clean, "clean", opts.Clean, "Clean database before seeding")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "Faker seed")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	summary, err := seed.NewSeeder(db, *randSeed).Run(ctx, opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	for _, admin := range summary.Admins {
		token, err := middleware.IssueToken(cfg.JWTSecret, admin.ID)
		if err != nil {
			log.Fatalf("Failed to sign admin token: %v", err)
		}
		log.Printf("admin %s token: %s", admin.Login, token)
	}
	log.Printf("Seeded %d users, %d ideas, %d votes", len(summary.Users), summary.Ideas, summary.Votes)
}
