// internal/refdata/store.go
package refdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sailscrape/internal/model"
	"sailscrape/internal/refdata/migrations"

	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // "sqlite" database/sql driver
)

const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"

	dateLayout = "2006-01-02"
)

// ErrNoSnapshot 는 run 날짜 이전의 category 스냅샷이 하나도 없는 경우.
var ErrNoSnapshot = errors.New("no cabin category snapshot before run date")

// Open 은 driver 에 맞는 *sql.DB 를 연다.
// sqlite 는 단일 writer 이므로 연결을 1개로 제한한다.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != DriverSQLite && driver != DriverPgx {
		return nil, fmt.Errorf("refdata: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("refdata: open: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("refdata: ping: %w", err)
	}
	return db, nil
}

// Migrate 는 embed 된 migration 을 모두 적용하고 적용된 개수를 반환한다.
func Migrate(ctx context.Context, db *sql.DB, driver string) (int, error) {
	dialect := goose.DialectSQLite3
	if driver == DriverPgx {
		dialect = goose.DialectPostgres
	}

	provider, err := goose.NewProvider(dialect, db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("refdata: goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("refdata: migrate: %w", err)
	}
	return len(results), nil
}

// Store
// ------------------------------------------------------------
// ship 별 cabin category 참조 테이블.
// 테이블은 날짜별 스냅샷(extract_date) 으로 쌓이고, scrape 는
// run 날짜 직전의 가장 최근 스냅샷을 읽는다 (하루 늦은 데이터 허용).
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Snapshot 은 runDate 보다 엄격히 이전인 가장 최근 extract_date 의 row 들과
// 그 날짜를 반환한다. 스냅샷이 없으면 ErrNoSnapshot.
func (s *Store) Snapshot(ctx context.Context, runDate time.Time) ([]model.CategoryRow, string, error) {
	before := runDate.UTC().Format(dateLayout)

	var latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(extract_date) FROM cabin_categories WHERE extract_date < $1`,
		before,
	).Scan(&latest)
	if err != nil {
		return nil, "", fmt.Errorf("refdata: latest snapshot: %w", err)
	}
	if !latest.Valid {
		return nil, "", fmt.Errorf("%w (%s)", ErrNoSnapshot, before)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ship_code, cabin_category
		   FROM cabin_categories
		  WHERE extract_date = $1
		  ORDER BY ship_code, cabin_category`,
		latest.String,
	)
	if err != nil {
		return nil, "", fmt.Errorf("refdata: snapshot: %w", err)
	}
	defer rows.Close()

	var out []model.CategoryRow
	for rows.Next() {
		var r model.CategoryRow
		if err := rows.Scan(&r.ShipCode, &r.Category); err != nil {
			return nil, "", fmt.Errorf("refdata: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("refdata: rows: %w", err)
	}

	s.log.Info().Str("extract_date", latest.String).Int("rows", len(out)).Msg("cabin category snapshot loaded")
	return out, latest.String, nil
}

// Categories 는 Snapshot 결과를 ship code 별로 묶어서 반환한다.
func (s *Store) Categories(ctx context.Context, runDate time.Time) (map[model.ShipCode][]model.CabinCategory, error) {
	rows, _, err := s.Snapshot(ctx, runDate)
	if err != nil {
		return nil, err
	}
	return Index(rows), nil
}

// Put 은 date 스냅샷에 row 들을 넣는다. 이미 있는 row 는 무시한다.
func (s *Store) Put(ctx context.Context, date time.Time, rows []model.CategoryRow) error {
	d := date.UTC().Format(dateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("refdata: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cabin_categories (ship_code, cabin_category, extract_date)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`)
	if err != nil {
		return fmt.Errorf("refdata: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, string(r.ShipCode), string(r.Category), d); err != nil {
			return fmt.Errorf("refdata: insert %s/%s: %w", r.ShipCode, r.Category, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("refdata: commit: %w", err)
	}
	return nil
}

// Index 는 row 들을 ship code 별 category 목록으로 묶는다.
// 중복은 제거하고 처음 나온 순서를 유지한다. 빈 값은 버린다.
func Index(rows []model.CategoryRow) map[model.ShipCode][]model.CabinCategory {
	out := make(map[model.ShipCode][]model.CabinCategory)
	seen := make(map[model.CategoryRow]struct{}, len(rows))
	for _, r := range rows {
		if r.ShipCode == "" || r.Category == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out[r.ShipCode] = append(out[r.ShipCode], r.Category)
	}
	return out
}
