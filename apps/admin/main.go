package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	std, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(std.Named("ADMIN"), conf)
	logger.Enable(false)

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err = database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	notifRepo := sqlxrepos.NewNotificationRepository(db)
	notifSvc := notification.NewService(notifRepo)
	certSvc := certificate.NewService(
		database.NewTransactor(db),
		sqlxrepos.NewCertificateRepository(db),
		progress.NewTracker(sqlxrepos.NewProgressSource(db), usrSvc),
		notifSvc,
		usrSvc,
		emailsvc.NewService(conf, logger),
		logger,
	)

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db.DB,
		out:      os.Stdout,
		validate: validate,
		usrSvc:   usrSvc,
		certSvc:  certSvc,
		notifSvc: notifSvc,
		sweeper:  notification.NewSweeper(notifRepo, logger),
	}
	err = cli.run(os.Args)
	logger.Sync()
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
