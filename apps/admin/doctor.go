package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

var errUnhealthy = errors.New("doctor found problems")

var requiredTables = []string{"profiles", "pcmb_knowledge"}

type providerCheck struct {
	name       string
	configured bool
	required   bool
}

func (cli *commandLine) providerChecks() []providerCheck {
	p := cli.conf.Providers
	s := cli.conf.Supabase
	return []providerCheck{
		{name: "sambanova key", configured: p.SambanovaKey != "", required: true},
		{name: "huggingface token", configured: p.HFToken != ""},
		{name: "github models token", configured: p.GithubToken != ""},
		{name: "cloudflare workers ai", configured: p.CloudflareAccountID != "" && p.CloudflareToken != "", required: true},
		{name: "serper key", configured: p.SerperKey != ""},
		{name: "supabase auth", configured: s.JWTSecret != "" || (s.URL != "" && s.AnonKey != ""), required: true},
	}
}

// doctor checks the database and reports which upstreams are configured.
// Missing optional upstreams only disable the features they back.
func (cli *commandLine) doctor() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	healthy := true

	cli.printf(color.FgYellow, "  Database:  ")
	if err := cli.db.PingContext(ctx); err != nil {
		cli.printf(color.FgRed, "UNREACHABLE (%v)\n", err)
		return errUnhealthy
	}
	fmt.Fprintf(cli.out, "connected to %s/%s\n", cli.conf.Database.Address(), cli.conf.Database.Name)

	for _, table := range requiredTables {
		var exists bool
		if err := cli.db.GetContext(ctx, &exists, `SELECT to_regclass($1) IS NOT NULL`, "public."+table); err != nil {
			return errors.Wrapf(err, "checking table %s", table)
		}
		cli.printf(color.FgYellow, "  Table %-15s ", table+":")
		if !exists {
			healthy = false
			cli.printf(color.FgRed, "MISSING (run: admin migrate up)\n")
			continue
		}
		cli.printf(color.FgGreen, "ok\n")
	}

	if healthy {
		n, err := cli.knowledge.Count(ctx)
		if err != nil {
			return err
		}
		cli.printf(color.FgYellow, "  Vault:     ")
		fmt.Fprintf(cli.out, "%d passages\n", n)
	}

	for _, c := range cli.providerChecks() {
		cli.printf(color.FgYellow, "  %-22s ", c.name+":")
		switch {
		case c.configured:
			cli.printf(color.FgGreen, "configured\n")
		case c.required:
			healthy = false
			cli.printf(color.FgRed, "MISSING\n")
		default:
			cli.printf(color.FgCyan, "not configured\n")
		}
	}

	if !healthy {
		return errUnhealthy
	}
	return nil
}
