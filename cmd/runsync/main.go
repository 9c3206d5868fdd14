package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"accessadmin.com/accessadmin/attendance/app"
	"accessadmin.com/accessadmin/config"
	"accessadmin.com/accessadmin/infrastructure/filesystem"
)

// runsync runs one reconciliation pass, or imports a punch file, and prints
// the result as JSON.
//
//	runsync -job pull
//	runsync -import punches.csv
//	runsync -import s3://attendance-drop/2026/03/punches.csv
func main() {
	job := flag.String("job", "", "job to run once: pull, push or identity_sync")
	importPath := flag.String("import", "", "punch CSV to import, a local path or s3://bucket/key")
	flag.Parse()

	if (*job == "") == (*importPath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -job or -import is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *job, *importPath); err != nil {
		config.LogError(config.GetLogger(), "cmd/runsync", "main", "run failed", nil, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, job string, importPath string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	config.SetLogLevel(cfg.LogLevel)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var result any
	if job != "" {
		result, err = a.RunJob(ctx, job)
	} else {
		var r io.Reader
		r, err = open(ctx, importPath)
		if err != nil {
			return err
		}
		result, err = a.Importer.ImportCSV(ctx, r)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func open(ctx context.Context, path string) (io.Reader, error) {
	bucketName, key, ok := filesystem.ParseLocation(path)
	if !ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(b), nil
	}

	bucket, err := filesystem.NewBucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := bucket.ReadFile(ctx, key, &buf); err != nil {
		return nil, err
	}
	return &buf, nil
}
