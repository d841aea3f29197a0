package claimsurecli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/claimsure/claimsure-app/claimsure/adjudicator"
	transport "github.com/claimsure/claimsure-app/claimsure/client"
	"github.com/claimsure/claimsure-app/claimsure/corporate"
	"github.com/claimsure/claimsure-app/claimsure/database"
	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/claimsure/repository/postgres"
	"github.com/claimsure/claimsure-app/claimsure/resolver"
	"github.com/claimsure/claimsure-app/claimsure/semantic"
	"github.com/claimsure/claimsure-app/claimsure/web"
	"github.com/claimsure/claimsure-app/conf"
	"github.com/claimsure/claimsure-app/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// App Name and usage.  Edit them here to prevent breaking tests
const Name = "claimsure"
const Usage = "Claimsure medical claim adjudication CLI"

func GetApp() *cli.App {
	return setUpApp()
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	var filePath, claimID, migrationsDir string
	var writeUsage, migrateDown bool
	app.Commands = []cli.Command{
		{
			Name:  "start-api",
			Usage: "Start the adjudication API",
			Action: func(c *cli.Context) error {
				db, err := database.Connect()
				if err != nil {
					return err
				}
				defer db.Close()

				engine, repo, err := buildAdjudicator(db)
				if err != nil {
					return err
				}

				api := web.NewAPI(engine, repo, db)

				port := conf.GetEnv("CLAIMSURE_API_PORT")
				if port == "" {
					port = "8002"
				}

				fmt.Fprintf(app.Writer, "%s\n", "Starting claimsure API...")
				srv := &http.Server{
					Handler:      web.NewAPIRouter(api),
					Addr:         ":" + port,
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 30 * time.Second,
				}
				return srv.ListenAndServe()
			},
		},
		{
			Name:  "migrate-db",
			Usage: "Apply or roll back database schema migrations",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "dir",
					Usage:       "Directory holding the migration files",
					Value:       "db/migrations",
					Destination: &migrationsDir,
				},
				cli.BoolFlag{
					Name:        "down",
					Usage:       "Roll back one migration step instead of applying",
					Destination: &migrateDown,
				},
			},
			Action: func(c *cli.Context) error {
				if migrateDown {
					return database.MigrateDown(migrationsDir)
				}
				return database.MigrateUp(migrationsDir)
			},
		},
		{
			Name:  "seed-catalog",
			Usage: "Load procedure catalog entries from a JSON file",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "file",
					Usage:       "Path of the catalog JSON file",
					Destination: &filePath,
				},
			},
			Action: func(c *cli.Context) error {
				db, err := database.Connect()
				if err != nil {
					return err
				}
				defer db.Close()

				count, err := seedCatalog(db, filePath)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "Loaded %d catalog entries\n", count)
				return nil
			},
		},
		{
			Name:  "adjudicate-file",
			Usage: "Adjudicate a claim JSON file against the local engine",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "file",
					Usage:       "Path of the claim JSON file",
					Destination: &filePath,
				},
				cli.BoolFlag{
					Name:        "write-usage",
					Usage:       "Consume annual allowances (omit for a dry run)",
					Destination: &writeUsage,
				},
			},
			Action: func(c *cli.Context) error {
				db, err := database.Connect()
				if err != nil {
					return err
				}
				defer db.Close()

				engine, _, err := buildAdjudicator(db)
				if err != nil {
					return err
				}

				claim, err := readClaim(filePath)
				if err != nil {
					return err
				}

				result, err := engine.Adjudicate(context.Background(), claim, writeUsage)
				if err != nil {
					return err
				}

				fmt.Fprintf(app.Writer, "%s\n", result.PrettyMessage)
				return nil
			},
		},
		{
			Name:  "submit-claim",
			Usage: "Submit a claim JSON file to a running adjudication API",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "file",
					Usage:       "Path of the claim JSON file",
					Destination: &filePath,
				},
				cli.StringFlag{
					Name:        "claim-id",
					Usage:       "Claim id to key the persisted decision by",
					Destination: &claimID,
				},
			},
			Action: func(c *cli.Context) error {
				cfg, err := transport.LoadConfig()
				if err != nil {
					return err
				}

				claim, err := readClaim(filePath)
				if err != nil {
					return err
				}

				result, err := transport.NewClient(cfg).Submit(context.Background(), claim, claimID)
				if err != nil {
					return errors.Wrap(err, "claim submission failed")
				}

				fmt.Fprintf(app.Writer, "%s\n", result.PrettyMessage)
				return nil
			},
		},
	}
	return app
}

func buildAdjudicator(db *sql.DB) (*adjudicator.Adjudicator, *postgres.Repository, error) {
	repo := postgres.NewRepository(db)

	semanticCfg, err := semantic.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	resolverCfg, err := resolver.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	corporateCfg, err := corporate.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	procedures := resolver.New(semantic.NewClient(semanticCfg), nil, *resolverCfg, log.Resolver)
	override := corporate.NewOrchestrator(corporate.NewClient(corporateCfg),
		models.Payer(corporateCfg.FailsafePayer), log.Corporate)

	return adjudicator.New(repo, procedures, repo, override, log.API), repo, nil
}

func readClaim(path string) (*models.Claim, error) {
	if path == "" {
		return nil, errors.New("a claim file must be provided with --file")
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var claim models.Claim
	if err := json.Unmarshal(data, &claim); err != nil {
		return nil, errors.Wrap(err, "invalid claim file")
	}
	return &claim, nil
}

func seedCatalog(db *sql.DB, path string) (int, error) {
	if path == "" {
		return 0, errors.New("a catalog file must be provided with --file")
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var entries []models.ProcedureCatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, errors.Wrap(err, "invalid catalog file")
	}

	repo := postgres.NewRepository(db)
	for _, entry := range entries {
		if err := repo.UpsertProcedure(context.Background(), entry); err != nil {
			return 0, errors.Wrapf(err, "failed to upsert %q", entry.Name)
		}
	}

	return len(entries), nil
}
