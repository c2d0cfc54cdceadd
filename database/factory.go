package database

import (
	"fmt"

	"github.com/jing2uo/krx2db/database/duckdb"
	"github.com/jing2uo/krx2db/model"
)

func NewDatabase(cfg model.DBConfig) (StateRepository, error) {
	switch cfg.Type {
	case model.DBTypeDuckDB, "":
		return duckdb.NewDriver(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported db type: %s", cfg.Type)
	}
}

// Open 创建、连接并初始化表结构
func Open(cfg model.DBConfig) (StateRepository, error) {
	db, err := NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DSN, err)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return db, nil
}
