package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

// Card, category and transaction access. The engine consumes these at its
// boundary: ownership checks, balance lookup, and the ledger write that
// completion produces.

func (q *Queries) CreateCard(ctx context.Context, userID int64, name string, balance decimal.Decimal) (core.Card, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO cards (user_id, name, balance, created_at) VALUES (?, ?, ?, ?)`,
		userID, name, balance.String(), time.Now().UTC().Format(timeFormat))
	if err != nil {
		return core.Card{}, fmt.Errorf("insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Card{}, fmt.Errorf("card insert id: %w", err)
	}
	return core.Card{ID: id, UserID: userID, Name: name, Balance: balance}, nil
}

// GetCardForUser looks a card up by id, scoped to its owner. A card owned by
// another user is reported as not found.
func (q *Queries) GetCardForUser(ctx context.Context, id, userID int64) (core.Card, error) {
	var (
		c       core.Card
		balance string
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, balance FROM cards WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&c.ID, &c.UserID, &c.Name, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, fmt.Errorf("card %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card %d: %w", id, err)
	}
	c.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return core.Card{}, fmt.Errorf("parse card balance %q: %w", balance, err)
	}
	return c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	return core.Category{ID: id, UserID: userID, Name: name}, nil
}

func (q *Queries) GetCategoryForUser(ctx context.Context, id, userID int64) (core.Category, error) {
	var c core.Category
	err := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, name FROM categories WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&c.ID, &c.UserID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.CreatedAt = time.Now().UTC()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, card_id, category_id, direction, amount,
			tx_date, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.CardID, nullInt(t.CategoryID), string(t.Direction),
		t.Amount.String(), t.Date.String(), t.Note, t.CreatedAt.Format(timeFormat))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id
	return t, nil
}

// RecomputeCardBalance recalculates a card's stored balance as the signed
// sum over all its ledger transactions and persists it. Always a full
// recompute, never an increment, so reordered or retried writers cannot
// make the stored value drift.
func (q *Queries) RecomputeCardBalance(ctx context.Context, cardID int64) (decimal.Decimal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT direction, amount FROM transactions WHERE card_id = ?`, cardID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load transactions for card %d: %w", cardID, err)
	}
	defer rows.Close()

	balance := decimal.Zero
	for rows.Next() {
		var direction, amount string
		if err := rows.Scan(&direction, &amount); err != nil {
			return decimal.Zero, fmt.Errorf("scan transaction: %w", err)
		}
		a, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse transaction amount %q: %w", amount, err)
		}
		balance = balance.Add(core.Direction(direction).Signed(a))
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("iterate transactions: %w", err)
	}

	if _, err := q.db.ExecContext(ctx,
		`UPDATE cards SET balance = ? WHERE id = ?`, balance.String(), cardID); err != nil {
		return decimal.Zero, fmt.Errorf("store card %d balance: %w", cardID, err)
	}
	return balance, nil
}
