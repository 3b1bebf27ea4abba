// Package postgres stores ledger accounts in PostgreSQL. Writers lock the
// rows they read with SELECT ... FOR UPDATE, so concurrent transactions on
// the same record serialize the way the ledger requires.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"voting-ledger/models"
	"voting-ledger/storage"
)

type accountRow struct {
	Address   []byte `gorm:"primaryKey;type:bytea"`
	Data      []byte `gorm:"type:bytea;not null"`
	UpdatedAt time.Time
}

func (accountRow) TableName() string { return "ledger_accounts" }

type Store struct {
	db *gorm.DB
}

var _ storage.AccountStore = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.AutoMigrate(&accountRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate accounts table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgTx{db: tx, writable: true})
	})
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgTx{db: tx})
	}, &sql.TxOptions{ReadOnly: true})
}

type pgTx struct {
	db       *gorm.DB
	writable bool
}

func (t *pgTx) Get(address models.Pubkey) ([]byte, error) {
	q := t.db
	if t.writable {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row accountRow
	err := q.Where("address = ?", address[:]).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select account")
	}
	return row.Data, nil
}

func (t *pgTx) Create(address models.Pubkey, data []byte) error {
	if !t.writable {
		return storage.ErrReadOnly
	}
	res := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&accountRow{
		Address:   address[:],
		Data:      data,
		UpdatedAt: time.Now(),
	})
	if res.Error != nil {
		return errors.Wrap(res.Error, "insert account")
	}
	if res.RowsAffected == 0 {
		return storage.ErrAlreadyInitialized
	}
	return nil
}

func (t *pgTx) Put(address models.Pubkey, data []byte) error {
	if !t.writable {
		return storage.ErrReadOnly
	}
	res := t.db.Model(&accountRow{}).
		Where("address = ?", address[:]).
		Updates(map[string]any{"data": data, "updated_at": time.Now()})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update account")
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *pgTx) ForEach(fn func(address models.Pubkey, data []byte) error) error {
	rows, err := t.db.Model(&accountRow{}).Order("address").Rows()
	if err != nil {
		return errors.Wrap(err, "scan accounts")
	}
	defer rows.Close()

	for rows.Next() {
		var row accountRow
		if err := t.db.ScanRows(rows, &row); err != nil {
			return errors.Wrap(err, "scan account row")
		}
		address, err := models.PubkeyFromBytes(row.Address)
		if err != nil {
			return err
		}
		if err := fn(address, row.Data); err != nil {
			return err
		}
	}
	return rows.Err()
}
