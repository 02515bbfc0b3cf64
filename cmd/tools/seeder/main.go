// Command seeder loads a demo bakery catalog and promotions, and can mint a
// staff token for calling the admin endpoints locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/auth"
	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/config"
	"github.com/noah-isme/backend-pasteleria/internal/db"
	"github.com/noah-isme/backend-pasteleria/internal/obs"
	"github.com/noah-isme/backend-pasteleria/internal/promotion"
)

func main() {
	staffEmail := flag.String("staff-token", "", "print a staff JWT for this email and exit")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "lifetime of the minted staff token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := obs.NewLogger("pasteleria-seeder", "console", "info")

	if *staffEmail != "" {
		tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, 0)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise tokens")
		}
		signed, err := tokens.Issue(auth.Principal{UserID: "staff:" + *staffEmail, Email: *staffEmail, Staff: true}, *tokenTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("issue token")
		}
		fmt.Println(signed)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("apply schema")
	}

	products := catalog.NewStore(pool)
	ids := map[string]int64{}
	for _, p := range demoProducts() {
		created, err := products.Create(ctx, p)
		if err != nil {
			logger.Fatal().Err(err).Str("product", p.Name).Msg("seed product")
		}
		ids[created.Name] = created.ID
	}
	logger.Info().Int("count", len(ids)).Msg("products seeded")

	promotions := promotion.NewStore(pool)
	seeded := 0
	for _, p := range demoPromotions(ids) {
		if err := promotion.Validate(p); err != nil {
			logger.Fatal().Err(err).Str("promotion", p.Title).Msg("invalid demo promotion")
		}
		if _, err := promotions.Create(ctx, p); err != nil {
			logger.Fatal().Err(err).Str("promotion", p.Title).Msg("seed promotion")
		}
		seeded++
	}
	logger.Info().Int("count", seeded).Msg("promotions seeded")
}

func demoProducts() []catalog.Product {
	price := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
	return []catalog.Product{
		{Name: "Berlin", Category: catalog.CategoryDisplayCase, Price: price(1000), Stock: 40, Featured: true},
		{Name: "Kuchen de manzana", Category: catalog.CategoryDisplayCase, Price: price(1500), Stock: 20},
		{Name: "Pie de limón", Category: catalog.CategoryDisplayCase, Price: price(1800), Stock: 15},
		{Name: "Torta tres leches", Category: catalog.CategoryCakes, Price: price(18000), Stock: 5, Featured: true},
		{Name: "Torta de mil hojas", Category: catalog.CategoryCakes, Price: price(22000), Stock: 4},
		{Name: "Tiramisú", Category: catalog.CategoryDesserts, Price: price(3500), Stock: 12},
		{Name: "Leche asada", Category: catalog.CategoryDesserts, Price: price(2500), Stock: 10},
	}
}

func demoPromotions(ids map[string]int64) []promotion.Promotion {
	pct := func(v int) *int { return &v }
	id := func(name string) *int64 {
		v := ids[name]
		return &v
	}
	return []promotion.Promotion{
		{
			Title: "2x1 en Berlines", Label: "2x1 Berlines", Kind: promotion.KindTwoForOne,
			ProductID: id("Berlin"), LimitedToStock: true, Active: true,
			ValidityNote: "Hasta agotar stock",
		},
		{
			Title: "Tortas 15% off", Label: "15% tortas", Kind: promotion.KindPercentageOff,
			Percentage: pct(15), Category: catalog.CategoryCakes, LinkCategory: catalog.CategoryCakes, Active: true,
		},
		{
			Title: "Segundo postre al 50%", Label: "2do al 50%", Kind: promotion.KindSecondUnitPercentageOff,
			SecondUnitPercentage: pct(50), Category: catalog.CategoryDesserts, LinkCategory: catalog.CategoryDesserts, Active: true,
		},
	}
}
