package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init-db":
		if err := runInitDB(os.Args[2:]); err != nil {
			sugar.Fatalf("init-db: %v", err)
		}
	case "copy-store":
		if err := runCopyStore(os.Args[2:]); err != nil {
			sugar.Fatalf("copy-store: %v", err)
		}
	case "export-journal":
		if err := runExportJournal(os.Args[2:]); err != nil {
			sugar.Fatalf("export-journal: %v", err)
		}
	case "dump-schema":
		if err := runDumpSchema(os.Args[2:]); err != nil {
			sugar.Fatalf("dump-schema: %v", err)
		}
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: norma-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  init-db          Create the PostgreSQL settings store and change journal tables")
	logger.Info("  copy-store       Copy stored settings documents between storage backends")
	logger.Info("  export-journal   Export unflushed change journal rows to S3 as parquet")
	logger.Info("  dump-schema      Print the derived schema of a sample settings class")
}
