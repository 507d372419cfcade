// SPDX-License-Identifier: GPL-3.0-or-later

// Package directory is the sqlite-backed account directory: the list of
// backend accounts of the user, which of them participate in the unified
// mailbox, and the credentials the connection factory dials with. The
// aggregation core itself only ever reads from it.
package directory

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/unifiedmail/go-inbox-unify/domain"
	"github.com/unifiedmail/go-inbox-unify/log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Directory struct {
	db *sqlx.DB
	l  *logrus.Logger
}

func New(datasource string) (*Directory, error) {
	db, err := sqlx.Connect("sqlite3", datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_DIRECTORY)
	l.WithField("file", datasource).Info("Connected")

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		return nil, fmt.Errorf("could not set synchronous mode: %w", err)
	}

	migrationSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migrations",
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrationSource, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	return &Directory{
		db: db,
		l:  l,
	}, nil
}

func (d *Directory) Close() error {
	err := d.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	d.l.Info("Disconnected")
	return nil
}

type dbAccount struct {
	ID      int    `db:"id"`
	Name    string `db:"name"`
	Server  string `db:"server"`
	Login   string `db:"login"`
	Unified bool   `db:"unified"`
}

func (a dbAccount) descriptor() domain.AccountDescriptor {
	return domain.AccountDescriptor{
		ID:      a.ID,
		Name:    a.Name,
		Server:  a.Server,
		Login:   a.Login,
		Unified: a.Unified,
	}
}

// UnifiedAccounts lists all accounts enabled for unification, ordered by id
// so callers see a stable account order.
func (d *Directory) UnifiedAccounts() ([]domain.AccountDescriptor, error) {
	dbAccounts := []dbAccount{}

	err := d.db.Select(
		&dbAccounts,
		`SELECT id, name, server, login, unified FROM accounts WHERE unified = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	accounts := []domain.AccountDescriptor{}
	for _, a := range dbAccounts {
		accounts = append(accounts, a.descriptor())
	}

	d.l.WithField("Count", len(accounts)).Debug("Found unified accounts")

	return accounts, nil
}

func (d *Directory) Account(id int) (*domain.AccountDescriptor, error) {
	a := dbAccount{}

	err := d.db.Get(
		&a,
		`SELECT id, name, server, login, unified FROM accounts WHERE id = ?`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	descriptor := a.descriptor()
	return &descriptor, nil
}

// Credentials yields what the connection factory needs to dial the account.
func (d *Directory) Credentials(id int) (server, login, password string, err error) {
	row := struct {
		Server   string `db:"server"`
		Login    string `db:"login"`
		Password string `db:"password"`
	}{}

	err = d.db.Get(
		&row,
		`SELECT server, login, password FROM accounts WHERE id = ?`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", "", fmt.Errorf("account %d: %w", id, domain.ErrNotConnected)
	}
	if err != nil {
		return "", "", "", fmt.Errorf("could not query db: %w", err)
	}

	return row.Server, row.Login, row.Password, nil
}

func (d *Directory) SaveAccount(account domain.AccountDescriptor, password string) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO accounts (id, name, server, login, password, unified) VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Name,
		account.Server,
		account.Login,
		password,
		account.Unified,
	)
	if err != nil {
		return fmt.Errorf("could not save account: %w", err)
	}

	d.l.WithFields(logrus.Fields{"Id": account.ID, "Name": account.Name, "Unified": account.Unified}).Info("Persisted account")
	return nil
}

func (d *Directory) SetUnified(id int, unified bool) error {
	result, err := d.db.Exec(
		`UPDATE accounts SET unified = ? WHERE id = ?`,
		unified, id,
	)
	if err != nil {
		return fmt.Errorf("could not update account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get num of affected rows: %w", err)
	}

	if affected != 1 {
		return fmt.Errorf("unexpected number of affected rows, expected 1 got %d", affected)
	}

	return nil
}
