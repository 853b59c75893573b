package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
	sqlxrepos "github.com/margdarshak/gateway/storage/database/sqlx"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type (
	knowledgeWriter interface {
		Insert(ctx context.Context, chunks ...sqlxrepos.KnowledgeChunk) error
		Count(ctx context.Context) (int, error)
	}

	commandLine struct {
		conf      *core.Config
		db        *sqlx.DB
		knowledge knowledgeWriter
		embedder  gateway.Embedder
		out       io.Writer
	}
)

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  ingest -file FILE -subject SUBJECT -chapter CHAPTER - embed a text book into the vault")
	fmt.Fprintln(cli.out, "  doctor - check the database and the upstream configuration")
	fmt.Fprintln(cli.out, "  token -user UUID [-email EMAIL] [-ttl DURATION] - mint a session token for local testing")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ingestCmd := flag.NewFlagSet("ingest", flag.ContinueOnError)
	ingestCmd.SetOutput(cli.out)
	ingestFile := ingestCmd.String("file", "", "Plain text of the book; pages separated by form feeds (pdftotext output).")
	ingestSubject := ingestCmd.String("subject", "", "Subject of the book, e.g. Physics.")
	ingestChapter := ingestCmd.String("chapter", "", "Chapter of the book.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenUser := tokenCmd.String("user", "", "The profile id (uuid) the token is issued for.")
	tokenEmail := tokenCmd.String("email", "", "The email claim.")
	tokenTTL := tokenCmd.Duration("ttl", time.Hour, "Token lifetime.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "ingest":
		if err := ingestCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *ingestFile == "" || core.CleanString(*ingestSubject) == "" {
			ingestCmd.Usage()
			return errHelp
		}
		return cli.ingest(*ingestFile, core.CleanString(*ingestSubject), core.CleanString(*ingestChapter))

	case "doctor":
		return cli.doctor()

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenUser == "" || *tokenTTL <= 0 {
			tokenCmd.Usage()
			return errHelp
		}

		secret := cli.conf.Supabase.JWTSecret
		if secret == "" {
			fmt.Fprint(cli.out, "Enter JWT secret:")
			b, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cli.out)
			if err != nil {
				return err
			}
			if len(b) == 0 {
				tokenCmd.Usage()
				return errHelp
			}
			secret = string(b)
		}
		return cli.token(secret, *tokenUser, core.CleanString(*tokenEmail, true /* lower */), *tokenTTL)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) printf(c color.Attribute, format string, args ...interface{}) {
	_, _ = color.New(c).Fprintf(cli.out, format, args...)
}
