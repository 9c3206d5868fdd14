package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"accessadmin.com/accessadmin/attendance/importer"
	"accessadmin.com/accessadmin/config"
	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

type csvImporter interface {
	ImportCSV(ctx context.Context, r io.Reader) (*importer.Result, error)
}

type objectReader interface {
	ReadFile(ctx context.Context, key string, w io.Writer) error
}

type FileResult struct {
	Bucket string           `json:"bucket"`
	Key    string           `json:"key"`
	Result *importer.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type handler struct {
	importer csvImporter
	open     func(ctx context.Context, bucket string) (objectReader, error)
	logger   *logrus.Logger
}

// handle imports every CSV object of the event. A file that fails is reported
// and the remaining files are still imported; the invocation fails when any
// file failed so the event can be retried.
func (h *handler) handle(ctx context.Context, event events.S3Event) ([]FileResult, error) {
	var results []FileResult
	failed := 0
	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			key = record.S3.Object.Key
		}
		if !strings.HasSuffix(strings.ToLower(key), ".csv") {
			h.logger.WithFields(logrus.Fields{"module": "lambdas/importpunches", "bucket": bucket, "key": key}).Info("not a csv, ignored")
			continue
		}

		fr := FileResult{Bucket: bucket, Key: key}
		fr.Result, err = h.importObject(ctx, bucket, key)
		if err != nil {
			failed++
			fr.Error = err.Error()
			config.LogError(h.logger, "lambdas/importpunches", "handle", "import failed", fr, err)
		} else {
			h.logger.WithFields(logrus.Fields{
				"module":   "lambdas/importpunches",
				"key":      key,
				"imported": fr.Result.Imported,
				"existing": fr.Result.Existing,
				"rejected": len(fr.Result.Rejected),
			}).Info("punch file imported")
		}
		results = append(results, fr)
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d punch files failed to import", failed, len(results))
	}
	return results, nil
}

func (h *handler) importObject(ctx context.Context, bucket string, key string) (*importer.Result, error) {
	reader, err := h.open(ctx, bucket)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := reader.ReadFile(ctx, key, &buf); err != nil {
		return nil, err
	}
	return h.importer.ImportCSV(ctx, &buf)
}
