// Command seed fills the snapshot storage with a default invite code and
// fake documentation traffic for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"docspace/entity"
	"docspace/impl/core"
	"docspace/internal/analytics"
	"docspace/internal/config"
	"docspace/internal/database"
	"docspace/internal/invites"
	"docspace/lib/clock"
	"docspace/lib/logger"
	"docspace/lib/sl"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

var docPages = []struct{ path, title string }{
	{"/docs/getting-started", "Getting started"},
	{"/docs/installation", "Installation"},
	{"/docs/configuration", "Configuration"},
	{"/docs/api/authentication", "Authentication"},
	{"/docs/api/invites", "Invite codes API"},
	{"/docs/api/analytics", "Analytics API"},
	{"/docs/deployment", "Deployment"},
	{"/docs/faq", "FAQ"},
}

var countries = []string{"PL", "DE", "US", "GB", "UA", "FR", "NL", "Spain", "Canada"}

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	sessions := flag.Int("sessions", 200, "number of fake sessions")
	days := flag.Int("days", 30, "spread sessions over this many past days")
	seed := flag.Uint64("seed", 0, "random seed, 0 for a random one")
	admin := flag.String("admin", "", "create an admin api user with this username in mongo")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger("local", "")
	ctx := context.Background()

	store, err := database.NewStore(ctx, conf)
	if err != nil {
		lg.Error("storage connect", sl.Err(err))
		os.Exit(1)
	}
	if store == nil {
		lg.Error("storage driver is none, nothing to seed")
		os.Exit(1)
	}
	defer store.Close()

	now := time.Now().UTC()
	clk := clock.NewManual(now)
	registry := invites.New(clk, invites.Config{
		CodeLength: conf.Invite.CodeLength,
		Attempts:   conf.Invite.GenerateAttempts,
	})
	handler := core.New(registry, analytics.New(clk), clk, lg)
	handler.SetStore(store)
	if err = handler.Load(ctx); err != nil {
		lg.Error("loading snapshots", sl.Err(err))
		os.Exit(1)
	}

	if len(handler.Invites()) == 0 {
		maxUses := 10
		code, err := handler.GenerateInvite(ctx,
			&entity.User{Username: "system", Name: "System", Role: entity.RoleAdmin},
			&entity.InviteRequest{MaxUses: &maxUses, Description: "Default admin invite code"},
		)
		if err != nil {
			lg.Error("default invite code", sl.Err(err))
			os.Exit(1)
		}
		fmt.Printf("default invite code: %s\n", code.Code)
	}

	faker := gofakeit.New(*seed)
	seedTraffic(handler, clk, faker, now, *sessions, *days)
	clk.Set(now)
	handler.Flush(ctx)
	lg.Info("traffic seeded", slog.Int("sessions", *sessions), slog.Int("days", *days))

	if *admin != "" {
		mongo := database.NewMongoClient(conf)
		if mongo == nil {
			lg.Error("mongo is disabled, cannot create api user")
			os.Exit(1)
		}
		user := &entity.User{
			Username: *admin,
			Name:     faker.Name(),
			Email:    faker.Email(),
			Token:    uuid.NewString(),
			Role:     entity.RoleAdmin,
		}
		if err = mongo.SaveUser(ctx, user); err != nil {
			lg.Error("saving api user", sl.Err(err))
			os.Exit(1)
		}
		fmt.Printf("api user %s token: %s\n", user.Username, user.Token)
	}
}

// seedTraffic replays sessions in start order so that every event is
// recorded at its own simulated time.
func seedTraffic(handler *core.Core, clk *clock.Manual, faker *gofakeit.Faker, now time.Time, sessions, days int) {
	// sessions last at most half an hour, so none runs past now
	window := time.Duration(days)*24*time.Hour - 30*time.Minute
	starts := make([]time.Time, sessions)
	for i := range starts {
		starts[i] = now.Add(-30*time.Minute - time.Duration(faker.Float64()*float64(window)))
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	users := make([]string, 20)
	for i := range users {
		users[i] = faker.Username()
	}

	for _, start := range starts {
		clk.Set(start)
		req := &entity.SessionRequest{
			UserAgent: faker.UserAgent(),
			IpAddress: faker.IPv4Address(),
			Country:   countries[faker.IntRange(0, len(countries)-1)],
		}
		if faker.Bool() {
			req.UserId = users[faker.IntRange(0, len(users)-1)]
		}
		session := handler.InitSession(req)

		for v := faker.IntRange(1, 6); v > 0; v-- {
			page := docPages[faker.IntRange(0, len(docPages)-1)]
			_, _ = handler.TrackPageView(session.Id, &entity.PageViewRequest{Path: page.path, Title: page.title})
			clk.Advance(time.Duration(faker.IntRange(5, 280)) * time.Second)
			if faker.Float32() < 0.2 {
				_, _ = handler.TrackSearch(session.Id, &entity.SearchRequest{
					Query:        faker.Word(),
					ResultsCount: faker.IntRange(0, 12),
				})
			}
		}
		_, _ = handler.EndSession(session.Id)
	}
}
