// Package collection persists the user's watchlist and portfolio in
// SQLite. It is a sibling of the pricing cache: plain keyed CRUD with
// no caching policy, sharing nothing with the query engine beyond the
// process that wires both.
package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Errors returned by the store.
var (
	// ErrCardIDRequired indicates a request without the mandatory card id.
	ErrCardIDRequired = errors.New("card_id required")

	// ErrItemIDRequired indicates a portfolio operation without a row id.
	ErrItemIDRequired = errors.New("id required")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS watchlist (
  card_id    TEXT PRIMARY KEY,
  card_name  TEXT NOT NULL DEFAULT '',
  set_name   TEXT NOT NULL DEFAULT '',
  image_url  TEXT NOT NULL DEFAULT '',
  added_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS portfolio (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  card_id        TEXT NOT NULL,
  card_name      TEXT NOT NULL DEFAULT '',
  set_name       TEXT NOT NULL DEFAULT '',
  image_url      TEXT NOT NULL DEFAULT '',
  variant        TEXT NOT NULL DEFAULT 'Normal',
  condition      TEXT NOT NULL DEFAULT 'Near Mint',
  quantity       INTEGER NOT NULL DEFAULT 1,
  purchase_price REAL,
  purchase_date  TEXT,
  notes          TEXT NOT NULL DEFAULT '',
  added_at       INTEGER NOT NULL
);
`

// Store persists watchlist and portfolio state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the SQLite store and creates the schema when absent.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// WatchlistCard is one watched card.
type WatchlistCard struct {
	CardID   string    `json:"card_id"`
	CardName string    `json:"card_name"`
	SetName  string    `json:"set_name"`
	ImageURL string    `json:"image_url"`
	AddedAt  time.Time `json:"added_at"`
}

// Watchlist returns all watched cards, newest first.
func (s *Store) Watchlist(ctx context.Context) ([]WatchlistCard, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT card_id, card_name, set_name, image_url, added_at
		   FROM watchlist
		  ORDER BY added_at DESC, card_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	cards := make([]WatchlistCard, 0)
	for rows.Next() {
		var card WatchlistCard
		var addedAt int64
		if err := rows.Scan(&card.CardID, &card.CardName, &card.SetName, &card.ImageURL, &addedAt); err != nil {
			return nil, fmt.Errorf("list watchlist: %w", err)
		}
		card.AddedAt = fromMillis(addedAt)
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}

	return cards, nil
}

// ToggleWatchlist adds the card when absent and removes it when
// present. Returns true when the card was added.
func (s *Store) ToggleWatchlist(ctx context.Context, card WatchlistCard) (bool, error) {
	cardID := strings.TrimSpace(card.CardID)
	if cardID == "" {
		return false, ErrCardIDRequired
	}

	var exists int
	err := s.sqlDB.QueryRowContext(
		ctx, `SELECT 1 FROM watchlist WHERE card_id = ?`, cardID,
	).Scan(&exists)
	switch {
	case err == nil:
		if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM watchlist WHERE card_id = ?`, cardID); err != nil {
			return false, fmt.Errorf("remove watchlist card: %w", err)
		}
		return false, nil
	case errors.Is(err, sql.ErrNoRows):
		_, err := s.sqlDB.ExecContext(
			ctx,
			`INSERT INTO watchlist (card_id, card_name, set_name, image_url, added_at)
			 VALUES (?, ?, ?, ?, ?)`,
			cardID, card.CardName, card.SetName, card.ImageURL, toMillis(time.Now()),
		)
		if err != nil {
			return false, fmt.Errorf("add watchlist card: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("check watchlist card: %w", err)
	}
}

// RemoveWatchlist deletes the card from the watchlist. Removing an
// absent card is not an error.
func (s *Store) RemoveWatchlist(ctx context.Context, cardID string) error {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return ErrCardIDRequired
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM watchlist WHERE card_id = ?`, cardID); err != nil {
		return fmt.Errorf("remove watchlist card: %w", err)
	}
	return nil
}

// PortfolioItem is one owned-card position.
type PortfolioItem struct {
	ID            int64     `json:"id"`
	CardID        string    `json:"card_id"`
	CardName      string    `json:"card_name"`
	SetName       string    `json:"set_name"`
	ImageURL      string    `json:"image_url"`
	Variant       string    `json:"variant"`
	Condition     string    `json:"condition"`
	Quantity      int       `json:"quantity"`
	PurchasePrice *float64  `json:"purchase_price"`
	PurchaseDate  string    `json:"purchase_date"`
	Notes         string    `json:"notes"`
	AddedAt       time.Time `json:"added_at"`
}

// Portfolio returns all positions, newest first.
func (s *Store) Portfolio(ctx context.Context) ([]PortfolioItem, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, card_id, card_name, set_name, image_url, variant, condition,
		        quantity, purchase_price, purchase_date, notes, added_at
		   FROM portfolio
		  ORDER BY added_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list portfolio: %w", err)
	}
	defer rows.Close()

	items := make([]PortfolioItem, 0)
	for rows.Next() {
		var item PortfolioItem
		var price sql.NullFloat64
		var date sql.NullString
		var addedAt int64
		if err := rows.Scan(
			&item.ID, &item.CardID, &item.CardName, &item.SetName, &item.ImageURL,
			&item.Variant, &item.Condition, &item.Quantity, &price, &date, &item.Notes, &addedAt,
		); err != nil {
			return nil, fmt.Errorf("list portfolio: %w", err)
		}
		if price.Valid {
			item.PurchasePrice = &price.Float64
		}
		item.PurchaseDate = date.String
		item.AddedAt = fromMillis(addedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list portfolio: %w", err)
	}

	return items, nil
}

// AddPortfolioItem inserts a position and returns its new row id.
// Variant, condition and quantity default to Normal / Near Mint / 1.
func (s *Store) AddPortfolioItem(ctx context.Context, item PortfolioItem) (int64, error) {
	cardID := strings.TrimSpace(item.CardID)
	if cardID == "" {
		return 0, ErrCardIDRequired
	}
	if item.Variant == "" {
		item.Variant = "Normal"
	}
	if item.Condition == "" {
		item.Condition = "Near Mint"
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	var price sql.NullFloat64
	if item.PurchasePrice != nil {
		price = sql.NullFloat64{Float64: *item.PurchasePrice, Valid: true}
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO portfolio
		   (card_id, card_name, set_name, image_url, variant, condition,
		    quantity, purchase_price, purchase_date, notes, added_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cardID, item.CardName, item.SetName, item.ImageURL, item.Variant, item.Condition,
		item.Quantity, price, item.PurchaseDate, item.Notes, toMillis(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("add portfolio item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add portfolio item: %w", err)
	}
	return id, nil
}

// PortfolioUpdate carries the fields of a partial update; nil fields
// are left unchanged.
type PortfolioUpdate struct {
	Quantity      *int
	PurchasePrice *float64
	PurchaseDate  *string
	Notes         *string
	Variant       *string
	Condition     *string
}

// UpdatePortfolioItem applies a partial update to one position. An
// update with no fields set is a no-op.
func (s *Store) UpdatePortfolioItem(ctx context.Context, id int64, update PortfolioUpdate) error {
	if id <= 0 {
		return ErrItemIDRequired
	}

	fields := make([]string, 0, 6)
	values := make([]any, 0, 7)
	if update.Quantity != nil {
		fields = append(fields, "quantity = ?")
		values = append(values, *update.Quantity)
	}
	if update.PurchasePrice != nil {
		fields = append(fields, "purchase_price = ?")
		values = append(values, *update.PurchasePrice)
	}
	if update.PurchaseDate != nil {
		fields = append(fields, "purchase_date = ?")
		values = append(values, *update.PurchaseDate)
	}
	if update.Notes != nil {
		fields = append(fields, "notes = ?")
		values = append(values, *update.Notes)
	}
	if update.Variant != nil {
		fields = append(fields, "variant = ?")
		values = append(values, *update.Variant)
	}
	if update.Condition != nil {
		fields = append(fields, "condition = ?")
		values = append(values, *update.Condition)
	}
	if len(fields) == 0 {
		return nil
	}

	values = append(values, id)
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE portfolio SET `+strings.Join(fields, ", ")+` WHERE id = ?`,
		values...,
	)
	if err != nil {
		return fmt.Errorf("update portfolio item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update portfolio item: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePortfolioItem removes one position. Deleting an absent row is
// not an error.
func (s *Store) DeletePortfolioItem(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrItemIDRequired
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM portfolio WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete portfolio item: %w", err)
	}
	return nil
}

// Counts returns the watchlist and portfolio sizes for diagnostics.
func (s *Store) Counts(ctx context.Context) (watchlist int, portfolio int, err error) {
	if err = s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM watchlist`).Scan(&watchlist); err != nil {
		return 0, 0, fmt.Errorf("count watchlist: %w", err)
	}
	if err = s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM portfolio`).Scan(&portfolio); err != nil {
		return 0, 0, fmt.Errorf("count portfolio: %w", err)
	}
	return watchlist, portfolio, nil
}
