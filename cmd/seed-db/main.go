// Command seed-db loads a small course catalog with instructors, promotion
// rules and reviews, enough data to exercise the cart API locally.
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

	"github.com/skillmarket/cart-service/internal/storage/postgres"
)

type seedFile struct {
	Courses     []courseJSON     `json:"courses"`
	Instructors []instructorJSON `json:"instructors"`
	Discounts   []discountJSON   `json:"discounts"`
	Coupons     []couponJSON     `json:"coupons"`
	Reviews     []reviewJSON     `json:"reviews"`
}

type courseJSON struct {
	ID            int             `json:"id"`
	Title         string          `json:"title"`
	ImageURL      string          `json:"imageUrl"`
	Price         decimal.Decimal `json:"price"`
	InstructorIDs []int           `json:"instructorIds"`
}

type instructorJSON struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Headline string `json:"headline"`
}

type discountJSON struct {
	ID        int             `json:"id"`
	Kind      string          `json:"kind"`
	Value     decimal.Decimal `json:"value"`
	StartsAt  time.Time       `json:"startsAt"`
	EndsAt    time.Time       `json:"endsAt"`
	Active    bool            `json:"active"`
	CourseIDs []int           `json:"courseIds"`
}

type couponJSON struct {
	Code          string          `json:"code"`
	CourseID      int             `json:"courseId"`
	UserID        *string         `json:"userId"`
	Kind          string          `json:"kind"`
	Value         decimal.Decimal `json:"value"`
	MinOrderValue decimal.Decimal `json:"minOrderValue"`
	StartsAt      time.Time       `json:"startsAt"`
	EndsAt        time.Time       `json:"endsAt"`
	Active        bool            `json:"active"`
}

type reviewJSON struct {
	CourseID int `json:"courseId"`
	Rating   int `json:"rating"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	for _, ins := range seed.Instructors {
		_, err := pool.Exec(ctx, `INSERT INTO instructors (id, name, headline)
			VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET name = $2, headline = $3`,
			ins.ID, ins.Name, ins.Headline)
		if err != nil {
			return errors.Wrapf(err, "insert instructor %d", ins.ID)
		}
	}

	for _, c := range seed.Courses {
		_, err := pool.Exec(ctx, `INSERT INTO courses (id, title, image_url, price)
			VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO UPDATE SET title = $2, image_url = $3, price = $4`,
			c.ID, c.Title, c.ImageURL, c.Price)
		if err != nil {
			return errors.Wrapf(err, "insert course %d", c.ID)
		}
		for _, insID := range c.InstructorIDs {
			_, err := pool.Exec(ctx, `INSERT INTO course_instructors (course_id, instructor_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING`, c.ID, insID)
			if err != nil {
				return errors.Wrapf(err, "link instructor %d to course %d", insID, c.ID)
			}
		}
	}

	for _, d := range seed.Discounts {
		_, err := pool.Exec(ctx, `INSERT INTO discounts (id, kind, value, starts_at, ends_at, active)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET kind = $2, value = $3, starts_at = $4, ends_at = $5, active = $6`,
			d.ID, d.Kind, d.Value, d.StartsAt, d.EndsAt, d.Active)
		if err != nil {
			return errors.Wrapf(err, "insert discount %d", d.ID)
		}
		for _, courseID := range d.CourseIDs {
			_, err := pool.Exec(ctx, `INSERT INTO course_discounts (course_id, discount_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING`, courseID, d.ID)
			if err != nil {
				return errors.Wrapf(err, "link discount %d to course %d", d.ID, courseID)
			}
		}
	}

	for _, c := range seed.Coupons {
		_, err := pool.Exec(ctx, `INSERT INTO coupons
			(code, course_id, user_id, kind, value, min_order_value, starts_at, ends_at, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (code) DO NOTHING`,
			c.Code, c.CourseID, c.UserID, c.Kind, c.Value, c.MinOrderValue, c.StartsAt, c.EndsAt, c.Active)
		if err != nil {
			return errors.Wrapf(err, "insert coupon %s", c.Code)
		}
	}

	for _, r := range seed.Reviews {
		_, err := pool.Exec(ctx, `INSERT INTO reviews (course_id, rating) VALUES ($1, $2)`,
			r.CourseID, r.Rating)
		if err != nil {
			return errors.Wrapf(err, "insert review for course %d", r.CourseID)
		}
	}

	slog.Info("seeded",
		slog.Int("courses", len(seed.Courses)),
		slog.Int("instructors", len(seed.Instructors)),
		slog.Int("discounts", len(seed.Discounts)),
		slog.Int("coupons", len(seed.Coupons)),
		slog.Int("reviews", len(seed.Reviews)),
	)
	return nil
}
