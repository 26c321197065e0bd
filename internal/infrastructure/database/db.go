package database

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/lumenlearn/pvs/pkg/config"
	"github.com/lumenlearn/pvs/pkg/db"
)

type DBManager struct {
	Db *sql.DB
}

func New(cfg *config.DatabaseConfig) (*DBManager, error) {
	DBDSN := db.GetDBDSN(cfg)
	Db, err := sql.Open("postgres", DBDSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		Db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		Db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			Db.SetConnMaxLifetime(d)
		}
	}

	if err := Db.Ping(); err != nil {
		return nil, err
	}

	return &DBManager{
		Db: Db,
	}, nil
}

func (dm *DBManager) ShutDown() {
	if dm.Db != nil {
		dm.Db.Close()
	}
}
