package main

import (
	"log"
	"os"

	"github.com/margdarshak/gateway/core"
	llmsvc "github.com/margdarshak/gateway/services/llm"
	"github.com/margdarshak/gateway/storage/database"
	sqlxrepos "github.com/margdarshak/gateway/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig(core.Getwd())
	errAndDie(err)

	// set up DB; commands that need it fail on first use, token works offline
	db, err := database.Connect(conf, 0)
	errAndDie(err)

	p := conf.Providers
	cli := commandLine{
		conf:      conf,
		db:        db,
		knowledge: sqlxrepos.NewKnowledgeRepository(db),
		embedder:  llmsvc.NewWorkersAI(p.CloudflareURL, p.CloudflareAccountID, p.CloudflareToken, conf.Gateway.UpstreamTimeout),
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
