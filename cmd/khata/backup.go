package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"khata/internal/reconcile"
	"khata/internal/services"
)

type exportCmd struct {
	dir string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a dated JSON backup of the whole ledger" }
func (*exportCmd) Usage() string {
	return `khata export [-dir <directory>]

  Writes khata_backup_<YYYY-MM-DD>.json into the directory.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", ".", "directory to write the backup into")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	name, doc := s.store.Export(s.store.Now())
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fail("encode backup", err)
	}
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fail("write backup", err)
	}
	fmt.Printf("Exported %d customers and %d transactions to %s\n", len(doc.Customers), len(doc.Transactions), path)
	return subcommands.ExitSuccess
}

type importCmd struct {
	file string
	url  string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "merge a JSON backup into the ledger" }
func (*importCmd) Usage() string {
	return `khata import -f <file> | -url <http(s) url>

  Customers and transactions in the backup replace the stored ones; users
  are replaced when the backup lists any and categories are merged.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "backup file to import")
	f.StringVar(&c.url, "url", "", "URL to download the backup from")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.file == "") == (c.url == "") {
		fmt.Fprintln(os.Stderr, "import requires exactly one of -f or -url")
		return subcommands.ExitUsageError
	}
	s, status := openSession(ctx)
	if s == nil {
		return status
	}
	defer s.Close()

	importer := services.NewImportService(s.store, s.cfg.ImportTimeout, s.cfg.ImportMaxBytes, s.logger)
	var (
		res reconcile.Result
		err error
	)
	if c.url != "" {
		res, err = importer.ImportFromURL(ctx, c.url)
	} else {
		f, openErr := os.Open(c.file)
		if openErr != nil {
			return fail("open backup", openErr)
		}
		defer f.Close()
		res, err = importer.ImportReader(ctx, f)
	}
	if err != nil {
		return fail("import", err)
	}
	fmt.Printf("Imported %d customers and %d transactions", res.Customers, res.Transactions)
	if res.Migrated > 0 {
		fmt.Printf(" (%d moved from the old nested format)", res.Migrated)
	}
	fmt.Println()
	return subcommands.ExitSuccess
}
