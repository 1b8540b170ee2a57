package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"skusync/pkg/catalog/feed"
)

var (
	// ErrDuplicate is returned when (marketplace_id, product_id) or the
	// uuid already exists in the table.
	ErrDuplicate = errors.New("duplicate sku")
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("sku not found")
)

const uniqueViolation = "23505"

const createTableSQL = `
create table if not exists sku
(
    uuid                   uuid primary key,
    marketplace_id         integer not null,
    product_id             bigint not null,
    title                  text,
    description            text,
    brand                  text,
    seller_id              integer,
    seller_name            text,
    first_image_url        text,
    category_id            integer,
    category_lvl_1         text,
    category_lvl_2         text,
    category_lvl_3         text,
    category_remaining     text,
    features               json,
    rating_count           integer,
    rating_value           double precision,
    price_before_discounts real,
    discount               double precision,
    price_after_discounts  real,
    bonuses                integer,
    sales                  integer,
    inserted_at            timestamp default now(),
    updated_at             timestamp default now(),
    currency               text,
    barcode                text,
    similar_sku            uuid[],
    constraint sku_marketplace_id_sku_id_uindex unique (marketplace_id, product_id)
);
create index if not exists sku_brand_index on sku (brand);
`

const insertSQL = `
insert into sku (
    uuid, marketplace_id, product_id, title, description, brand,
    seller_id, seller_name, first_image_url, category_id,
    category_lvl_1, category_lvl_2, category_lvl_3, category_remaining,
    features, rating_count, rating_value, price_before_discounts,
    discount, price_after_discounts, bonuses, sales, currency, barcode,
    similar_sku
) values (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
    $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
) returning inserted_at, updated_at`

const selectSQL = `
select uuid, marketplace_id, product_id, title, description, brand,
       seller_id, seller_name, first_image_url, category_id,
       category_lvl_1, category_lvl_2, category_lvl_3, category_remaining,
       features, rating_count, rating_value, price_before_discounts,
       discount, price_after_discounts, bonuses, sales, currency, barcode,
       inserted_at, updated_at, similar_sku
from sku where uuid = $1`

// Store persists SKU records in a Postgres table. Every call commits on
// its own; no transaction spans the run.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection, so an
// unreachable database fails the run before any record is processed.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres - %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres - %w", err)
	}

	return &Store{db: db}, nil
}

// NewFromDB wraps an existing connection, mainly for tests.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Reset drops and recreates the sku table. Safe to call on a fresh
// database; every run starts from an empty table.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `drop table if exists sku`); err != nil {
		return fmt.Errorf("drop sku table - %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create sku table - %w", err)
	}
	return nil
}

// Insert persists a new record and reads back the server-assigned
// timestamps. Returns ErrDuplicate when the uuid or the
// (marketplace_id, product_id) pair already exists.
func (s *Store) Insert(ctx context.Context, sku *feed.SKU) error {
	features, err := json.Marshal(sku.Features)
	if err != nil {
		return fmt.Errorf("encode features - %w", err)
	}

	err = s.db.QueryRowContext(
		ctx,
		insertSQL,
		sku.UUID,
		sku.MarketplaceID,
		sku.ProductID,
		sku.Title,
		sku.Description,
		sku.Brand,
		sku.SellerID,
		sku.SellerName,
		sku.FirstImageURL,
		sku.CategoryID,
		sku.CategoryLvl1,
		sku.CategoryLvl2,
		sku.CategoryLvl3,
		sku.CategoryRemaining,
		features,
		sku.RatingCount,
		sku.RatingValue,
		sku.PriceBeforeDiscounts,
		sku.Discount,
		sku.PriceAfterDiscounts,
		sku.Bonuses,
		sku.Sales,
		sku.Currency,
		sku.Barcode,
		pq.Array(uuidStrings(sku.SimilarSKU)),
	).Scan(&sku.InsertedAt, &sku.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("insert sku %d/%d - %w", sku.MarketplaceID, sku.ProductID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert sku %s - %w", sku.UUID, err)
	}

	return nil
}

// UpdateSimilarity replaces the similarity list of an existing record
// and bumps its updated_at timestamp.
func (s *Store) UpdateSimilarity(ctx context.Context, id uuid.UUID, similar []uuid.UUID) error {
	res, err := s.db.ExecContext(
		ctx,
		`update sku set similar_sku = $2, updated_at = now() where uuid = $1`,
		id,
		pq.Array(uuidStrings(similar)),
	)
	if err != nil {
		return fmt.Errorf("update similar_sku %s - %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update similar_sku %s - %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update similar_sku %s - %w", id, ErrNotFound)
	}

	return nil
}

// Get reads one record back in full, ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*feed.SKU, error) {
	var (
		sku      feed.SKU
		features []byte
		similar  []string
	)

	err := s.db.QueryRowContext(ctx, selectSQL, id).Scan(
		&sku.UUID,
		&sku.MarketplaceID,
		&sku.ProductID,
		&sku.Title,
		&sku.Description,
		&sku.Brand,
		&sku.SellerID,
		&sku.SellerName,
		&sku.FirstImageURL,
		&sku.CategoryID,
		&sku.CategoryLvl1,
		&sku.CategoryLvl2,
		&sku.CategoryLvl3,
		&sku.CategoryRemaining,
		&features,
		&sku.RatingCount,
		&sku.RatingValue,
		&sku.PriceBeforeDiscounts,
		&sku.Discount,
		&sku.PriceAfterDiscounts,
		&sku.Bonuses,
		&sku.Sales,
		&sku.Currency,
		&sku.Barcode,
		&sku.InsertedAt,
		&sku.UpdatedAt,
		pq.Array(&similar),
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get sku %s - %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sku %s - %w", id, err)
	}

	if err := json.Unmarshal(features, &sku.Features); err != nil {
		return nil, fmt.Errorf("decode features %s - %w", id, err)
	}

	sku.SimilarSKU = make([]uuid.UUID, 0, len(similar))
	for i := range similar {
		u, err := uuid.Parse(similar[i])
		if err != nil {
			return nil, fmt.Errorf("decode similar_sku %s - %w", id, err)
		}
		sku.SimilarSKU = append(sku.SimilarSKU, u)
	}

	return &sku, nil
}

// Count returns the number of persisted records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `select count(*) from sku`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sku - %w", err)
	}
	return n, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i := range ids {
		out[i] = ids[i].String()
	}
	return out
}
