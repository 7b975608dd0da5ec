// Command seed fills the database with demo or random recipes.
package main

import (
	"context"
	"flag"
	"log"

	"recipebox/internal/config"
	"recipebox/internal/database"
	"recipebox/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of random users to create")
	recipesPerUser := flag.Int("recipes", 3, "Recipes per random user")
	commentsPerRecipe := flag.Int("comments", 4, "Comments per random recipe")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fixture := flag.String("fixture", "", "Load a YAML fixture by name (e.g. demo) or path instead of random data")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, *randSeed)

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var res seed.Result
	if *fixture != "" {
		fx, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("Loading fixture failed: %v", err)
		}
		if res, err = s.ApplyFixture(ctx, fx); err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		res, err = s.SeedRandom(ctx, seed.Options{
			Users:             *numUsers,
			RecipesPerUser:    *recipesPerUser,
			CommentsPerRecipe: *commentsPerRecipe,
		})
		if err != nil {
			log.Fatalf("Random seeding failed: %v", err)
		}
	}

	log.Printf("Seeded %s", res)
	log.Printf("Seeded users without an explicit password use: %s", seed.DefaultPassword)
}
