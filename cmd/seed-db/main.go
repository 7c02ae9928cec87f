// Command seed-db loads the catalog from a JSON file and writes the demo
// coupons, preparing a fresh MongoDB database for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/fashionnest/internal/domain/coupon"
	"github.com/xenking/fashionnest/internal/domain/product"
	storage "github.com/xenking/fashionnest/internal/storage/mongo"
)

type productJSON struct {
	ID            string          `json:"id"`
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
	Category      string          `json:"category"`
	Subcategory   string          `json:"subcategory"`
	Brand         string          `json:"brand"`
	Images        []string        `json:"images"`
	Sizes         []struct {
		Name  string `json:"name"`
		Stock int    `json:"stock"`
	} `json:"sizes"`
	Colors []struct {
		Name string `json:"name"`
		Code string `json:"code"`
	} `json:"colors"`
	Featured bool `json:"featured"`
	Trending bool `json:"trending"`
}

func main() {
	var (
		mongoURL     string
		database     string
		productsFile string
	)

	flag.StringVar(&mongoURL, "mongo-url", "", "MongoDB connection URL (or MONGO_URL env)")
	flag.StringVar(&database, "database", "fashionnest", "MongoDB database name")
	flag.StringVar(&productsFile, "products-file", "seed/products.json", "path to products JSON file")
	flag.Parse()

	if mongoURL == "" {
		mongoURL = os.Getenv("MONGO_URL")
	}
	if mongoURL == "" {
		slog.Error("mongo URL is required: set --mongo-url or MONGO_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, mongoURL, database, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, mongoURL, database, productsFile string) error {
	slog.Info("connecting to database")

	db, err := storage.Connect(ctx, mongoURL, database)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()

	slog.Info("ensuring indexes")

	if err := storage.EnsureIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "ensure indexes")
	}

	if err := seedProducts(ctx, db, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, db); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedProducts(ctx context.Context, db *mongodrv.Database, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	now := time.Now()
	coll := db.Collection("products")
	for _, pj := range products {
		p := product.Product{
			ID:            pj.ID,
			Slug:          pj.Slug,
			Name:          pj.Name,
			Description:   pj.Description,
			Price:         pj.Price,
			DiscountPrice: pj.DiscountPrice,
			Category:      product.Category(pj.Category),
			Subcategory:   pj.Subcategory,
			Brand:         pj.Brand,
			Images:        pj.Images,
			Featured:      pj.Featured,
			Trending:      pj.Trending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if !p.Category.Valid() {
			return errors.Errorf("product %s: unknown category %q", pj.ID, pj.Category)
		}
		for _, s := range pj.Sizes {
			p.Sizes = append(p.Sizes, product.Size{Name: s.Name, Stock: s.Stock})
		}
		for _, c := range pj.Colors {
			p.Colors = append(p.Colors, product.Color{Name: c.Name, Code: c.Code})
		}

		_, err := coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, db *mongodrv.Database) error {
	slog.Info("seeding demo coupons")

	now := time.Now()
	limit := 100
	coupons := []coupon.Coupon{
		{
			Code:          "WELCOME10",
			Description:   "10% off your first order",
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			StartDate:     now,
			EndDate:       now.AddDate(1, 0, 0),
			Active:        true,
			CreatedAt:     now,
		},
		{
			Code:            "SAVE15",
			Description:     "$15 off orders over $100",
			DiscountType:    coupon.DiscountFixed,
			DiscountValue:   decimal.NewFromInt(15),
			MinimumPurchase: decimal.NewFromInt(100),
			StartDate:       now,
			EndDate:         now.AddDate(0, 6, 0),
			Active:          true,
			UsageLimit:      &limit,
			CreatedAt:       now,
		},
	}

	repo := storage.NewCouponRepository(db)
	for i := range coupons {
		if err := repo.Upsert(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}

		slog.Info("upserted coupon",
			slog.String("code", coupons[i].Code),
			slog.String("description", coupons[i].Description),
		)
	}

	return nil
}
