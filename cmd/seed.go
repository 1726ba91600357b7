package cmd

import (
	"context"
	"fmt"

	"github.com/jmehdipour/church-sms/internal/app"
	"github.com/jmehdipour/church-sms/internal/config"
	"github.com/jmehdipour/church-sms/internal/db"
	"github.com/jmehdipour/church-sms/internal/logger"
	"github.com/jmehdipour/church-sms/internal/model"
	"github.com/jmehdipour/church-sms/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type seedMember struct {
	name  string
	phone string
}

// demo data; phones are stored normalized
var seedGroups = map[string][]seedMember{
	"Choir": {
		{"Ama Mensah", "0244000101"},
		{"Kofi Boateng", "0244000102"},
		{"Efua Owusu", "0244000103"},
	},
	"Youth Fellowship": {
		{"Yaw Asante", "0201000201"},
		{"Akosua Darko", "0201000202"},
	},
	"Ushers": {
		{"Kwame Appiah", "0277000301"},
		{"Kofi Boateng", "0244000102"},
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo groups and members",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.Init(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		ctx := context.Background()
		groups := repository.NewGroupsRepository(sqlDB)
		phone := app.PhoneNormalizer(cfg)

		tx, err := sqlDB.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for name, members := range seedGroups {
			id, err := groups.Upsert(ctx, tx, name)
			if err != nil {
				return err
			}
			for _, m := range members {
				if err := groups.AddMember(ctx, tx, model.GroupMember{
					GroupID:  id,
					FullName: m.name,
					Phone:    phone.Normalize(m.phone),
				}); err != nil {
					return fmt.Errorf("add member %q to %q: %w", m.name, name, err)
				}
			}
			log.Info("seeded group", zap.String("group", name), zap.Int64("id", id), zap.Int("members", len(members)))
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit seed: %w", err)
		}
		log.Info("seed completed")
		return nil
	},
}
