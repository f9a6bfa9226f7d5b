package postgres

import (
	"context"
	"errors"
	"fmt"

	"alpaclub/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AlpacaRepo implements ports.AlpacaRepository.
//
// Schema:
//
//	alpacas   (id BIGINT PK, name, color, stable_color, accessory,
//	           background_image NULL, current_value BIGINT,
//	           owner_name, secret_hash, last_transfer_at TIMESTAMPTZ)
//	transfers (id UUID PK, alpaca_id BIGINT FK, occurred_at TIMESTAMPTZ,
//	           previous_owner, new_owner, amount BIGINT)
type AlpacaRepo struct {
	pool Pool
}

// NewAlpacaRepo creates a new AlpacaRepo.
func NewAlpacaRepo(pool Pool) *AlpacaRepo {
	return &AlpacaRepo{pool: pool}
}

const alpacaColumns = `id, name, color, stable_color, accessory, background_image,
	current_value, owner_name, secret_hash, last_transfer_at`

const transferColumns = `id, alpaca_id, occurred_at, previous_owner, new_owner, amount`

// GetByID loads one alpaca with its ledger, most-recent-first. Returns
// (nil, nil) when no record exists.
func (r *AlpacaRepo) GetByID(ctx context.Context, id int64) (*domain.Alpaca, error) {
	query := `SELECT ` + alpacaColumns + ` FROM alpacas WHERE id = $1`

	a := &domain.Alpaca{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.Color, &a.StableColor, &a.Accessory, &a.BackgroundImage,
		&a.CurrentValue, &a.OwnerName, &a.SecretHash, &a.LastTransferAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alpaca by id: %w", err)
	}

	history, err := r.loadTransfers(ctx, id)
	if err != nil {
		return nil, err
	}
	a.History = history

	return a, nil
}

// List returns all alpacas ordered by id, ledgers included.
func (r *AlpacaRepo) List(ctx context.Context) ([]domain.Alpaca, error) {
	query := `SELECT ` + alpacaColumns + ` FROM alpacas ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list alpacas: %w", err)
	}
	defer rows.Close()

	var alpacas []domain.Alpaca
	byID := make(map[int64]int)
	for rows.Next() {
		var a domain.Alpaca
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Color, &a.StableColor, &a.Accessory, &a.BackgroundImage,
			&a.CurrentValue, &a.OwnerName, &a.SecretHash, &a.LastTransferAt,
		); err != nil {
			return nil, fmt.Errorf("scan alpaca: %w", err)
		}
		byID[a.ID] = len(alpacas)
		alpacas = append(alpacas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alpacas: %w", err)
	}

	histQuery := `SELECT ` + transferColumns + ` FROM transfers ORDER BY alpaca_id ASC, occurred_at DESC`
	histRows, err := r.pool.Query(ctx, histQuery)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer histRows.Close()

	for histRows.Next() {
		var rec domain.TransferRecord
		if err := histRows.Scan(
			&rec.ID, &rec.AlpacaID, &rec.OccurredAt,
			&rec.PreviousOwner, &rec.NewOwner, &rec.Amount,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if idx, ok := byID[rec.AlpacaID]; ok {
			alpacas[idx].History = append(alpacas[idx].History, rec)
		}
	}
	if err := histRows.Err(); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}

	return alpacas, nil
}

// Count returns the number of provisioned alpacas.
func (r *AlpacaRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alpacas`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alpacas: %w", err)
	}
	return n, nil
}

// Create inserts a freshly provisioned alpaca.
func (r *AlpacaRepo) Create(ctx context.Context, a *domain.Alpaca) error {
	query := `INSERT INTO alpacas (` + alpacaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Name, a.Color, a.StableColor, a.Accessory, a.BackgroundImage,
		a.CurrentValue, a.OwnerName, a.SecretHash, a.LastTransferAt,
	)
	if err != nil {
		return fmt.Errorf("insert alpaca: %w", err)
	}
	return nil
}

// Save persists the alpaca's current fields and, when the in-memory ledger
// has grown by exactly one entry since the persisted state, the new ledger
// row. Both writes commit in one database transaction so a failed save
// never leaves the ledger and the owner fields out of step.
func (r *AlpacaRepo) Save(ctx context.Context, a *domain.Alpaca) (*domain.Alpaca, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var persisted int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM transfers WHERE alpaca_id = $1`, a.ID).Scan(&persisted); err != nil {
		return nil, fmt.Errorf("count transfers: %w", err)
	}

	switch int64(len(a.History)) {
	case persisted:
		// Cosmetic-only save, no new ledger row.
	case persisted + 1:
		rec := a.History[0]
		_, err := tx.Exec(ctx,
			`INSERT INTO transfers (`+transferColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.ID, rec.AlpacaID, rec.OccurredAt, rec.PreviousOwner, rec.NewOwner, rec.Amount,
		)
		if err != nil {
			return nil, fmt.Errorf("insert transfer: %w", err)
		}
	default:
		return nil, fmt.Errorf("ledger out of sync for alpaca %d: %d in memory, %d persisted",
			a.ID, len(a.History), persisted)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE alpacas SET name = $1, color = $2, stable_color = $3, accessory = $4,
			background_image = $5, current_value = $6, owner_name = $7,
			secret_hash = $8, last_transfer_at = $9
		WHERE id = $10`,
		a.Name, a.Color, a.StableColor, a.Accessory, a.BackgroundImage,
		a.CurrentValue, a.OwnerName, a.SecretHash, a.LastTransferAt, a.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update alpaca: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("alpaca not found: %d", a.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit save: %w", err)
	}

	return a, nil
}

// loadTransfers fetches one alpaca's ledger, most-recent-first.
func (r *AlpacaRepo) loadTransfers(ctx context.Context, alpacaID int64) ([]domain.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE alpaca_id = $1 ORDER BY occurred_at DESC`

	rows, err := r.pool.Query(ctx, query, alpacaID)
	if err != nil {
		return nil, fmt.Errorf("get transfers: %w", err)
	}
	defer rows.Close()

	var history []domain.TransferRecord
	for rows.Next() {
		var rec domain.TransferRecord
		if err := rows.Scan(
			&rec.ID, &rec.AlpacaID, &rec.OccurredAt,
			&rec.PreviousOwner, &rec.NewOwner, &rec.Amount,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get transfers: %w", err)
	}

	return history, nil
}
