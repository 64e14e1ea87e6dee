package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/user"
	"github.com/trezcool/ritmatiza/services/logger"
	"github.com/trezcool/ritmatiza/storage/database"
	"github.com/trezcool/ritmatiza/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stderr, conf)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := newCommandLine(db.DB, user.NewService(sqlxrepos.NewUserRepository(db)), logger)
	err = cli.run(os.Args)
	closeDB(db.DB, logger)
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}

func closeDB(db *sql.DB, logger core.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("closing database", err)
	}
}
