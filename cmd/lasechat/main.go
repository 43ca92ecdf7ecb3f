package main

import (
	"database/sql"
	"flag"
	"log"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/lasedigital/lasechat/internal/admin"
	"github.com/lasedigital/lasechat/internal/config"
	"github.com/lasedigital/lasechat/internal/hub"
	"github.com/lasedigital/lasechat/internal/messages"
	"github.com/lasedigital/lasechat/internal/storage/postgres"
	"github.com/lasedigital/lasechat/internal/storage/sqlite"
	"github.com/lasedigital/lasechat/internal/store"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()

	var (
		db  *sql.DB
		pg  bool
		err error
	)
	if cfg.PostgresDsn != "" {
		conn, perr := postgres.New(cfg.PostgresDsn)
		if perr != nil {
			log.Fatalf("Error connecting to postgres: %v", perr)
		}
		if err = conn.Migrate(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		db, pg = conn.Db, true
	} else {
		conn, serr := sqlite.New(cfg.SQLITEDsn)
		if serr != nil {
			log.Fatalf("Error opening sqlite: %v", serr)
		}
		if err = conn.Migrate(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		db = conn.Db
	}
	defer db.Close()

	if *migrateOnly {
		slog.Info("migration completed")
		return
	}

	st := store.New(db, pg)

	h := hub.NewHub()
	go h.Run()

	r := gin.Default()
	api := r.Group("/api")
	admin.Register(api, cfg.AdminPIN, cfg.SessionSecret, cfg.SessionTTLMin)
	messages.Register(api, st, h, cfg.SessionListCap, admin.Middleware(cfg.SessionSecret))
	hub.RegisterWS(api, h)

	slog.Info("lasechat listening", "addr", cfg.Addr, "postgres", pg)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
