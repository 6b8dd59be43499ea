// Command coupon-ingest bulk-loads promo codes for a course campaign.
//
// Marketing campaigns distribute code lists through several partner
// channels; a code is only honored when at least two channels agree on
// it, which filters out typos and fabricated codes. The lists are large
// gzipped files of one code per line, so the command streams them twice:
// pass 1 builds a bloom filter per file, pass 2 collects codes whose
// filter membership spans two or more files.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/skillmarket/cart-service/internal/domain/pricing"
	"github.com/skillmarket/cart-service/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

const upsertCouponSQL = `INSERT INTO coupons
	(code, course_id, user_id, kind, value, min_order_value, starts_at, ends_at, active)
VALUES ($1, $2, NULL, $3, $4, $5, $6, $7, TRUE)
ON CONFLICT (code) DO UPDATE SET
	course_id = EXCLUDED.course_id,
	kind = EXCLUDED.kind,
	value = EXCLUDED.value,
	min_order_value = EXCLUDED.min_order_value,
	starts_at = EXCLUDED.starts_at,
	ends_at = EXCLUDED.ends_at,
	active = TRUE`

// campaign describes the reduction rule every ingested code grants.
type campaign struct {
	courseID      int
	kind          pricing.RuleKind
	value         decimal.Decimal
	minOrderValue decimal.Decimal
	startsAt      time.Time
	endsAt        time.Time
}

// fileResult holds candidate codes found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir       string
		databaseURL   string
		courseID      int
		numFiles      int
		kindName      string
		value         string
		minOrderValue string
		durationDays  int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing campaignN.gz code files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&courseID, "course-id", 0, "course the campaign codes apply to")
	flag.IntVar(&numFiles, "files", 3, "number of campaignN.gz files to cross-check")
	flag.StringVar(&kindName, "kind", "percentage", "reduction kind: percentage or flat_value")
	flag.StringVar(&value, "value", "10", "reduction value (percent or amount)")
	flag.StringVar(&minOrderValue, "min-order-value", "0", "minimum discounted price for the code to apply")
	flag.IntVar(&durationDays, "duration-days", 30, "campaign duration starting now")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if courseID <= 0 {
		slog.Error("--course-id is required")
		os.Exit(1)
	}

	camp, err := buildCampaign(courseID, kindName, value, minOrderValue, durationDays)
	if err != nil {
		slog.Error("invalid campaign flags", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, numFiles, camp); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func buildCampaign(courseID int, kindName, value, minOrderValue string, durationDays int) (campaign, error) {
	kind, err := pricing.ParseRuleKind(kindName)
	if err != nil {
		return campaign{}, err
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return campaign{}, errors.Wrap(err, "parse value")
	}
	mov, err := decimal.NewFromString(minOrderValue)
	if err != nil {
		return campaign{}, errors.Wrap(err, "parse min order value")
	}
	now := time.Now().UTC()
	return campaign{
		courseID:      courseID,
		kind:          kind,
		value:         v,
		minOrderValue: mov,
		startsAt:      now,
		endsAt:        now.AddDate(0, 0, durationDays),
	}, nil
}

func run(ctx context.Context, dataDir, databaseURL string, numFiles int, camp campaign) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("campaign%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Find candidate codes appearing in 2+ files.
	slog.Info("pass 2: finding candidate codes")

	validCodes, err := findValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, pool, camp, validCodes); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each file and checks codes against OTHER files'
// bloom filters. A code is valid if it appears in 2 or more files.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	// Keep codes appearing in 2+ files.
	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", count),
				)
			}

			// Check if this code appears in any OTHER file's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(strings.TrimSpace(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeCoupons upserts all valid campaign codes into the database.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, camp campaign, codes []string) error {
	slog.Info("writing coupons to database",
		slog.Int("count", len(codes)),
		slog.Int("course_id", camp.courseID),
	)

	for i, code := range codes {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			code, camp.courseID, camp.kind.String(), camp.value,
			camp.minOrderValue, camp.startsAt, camp.endsAt)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
