package runner

import (
	"context"

	"github.com/abdul-hamid-achik/snot/packages/slick"
)

// ResultService is the remote side of the lifecycle. *slick.Client implements it.
type ResultService interface {
	CreateOrFetchResult(ctx context.Context, req slick.ResultRequest) (*slick.Result, error)
	UpdateResult(ctx context.Context, r *slick.Result) (*slick.Result, error)
	FetchResult(ctx context.Context, id string) (*slick.Result, error)

	CreateOrFetchTestRun(ctx context.Context, spec slick.TestRun) (*slick.TestRun, error)
	FetchTestRun(ctx context.Context, id string) (*slick.TestRun, error)
	UpdateTestRun(ctx context.Context, run *slick.TestRun) (*slick.TestRun, error)
	FinishTestRun(ctx context.Context, id string) error

	UploadFile(ctx context.Context, filename, mimetype string, content []byte) (*slick.FileReference, error)
	AddLogEntry(ctx context.Context, resultID string, entries ...slick.LogEntry) error
}

var _ ResultService = (*slick.Client)(nil)
