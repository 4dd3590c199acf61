package job

import (
	"context"

	"github.com/xxxsen/recall/internal/service"
)

type EnrichJob struct {
	capture *service.CaptureService
	batch   uint
}

func NewEnrichJob(capture *service.CaptureService, batch uint) *EnrichJob {
	if batch == 0 {
		batch = 20
	}
	return &EnrichJob{capture: capture, batch: batch}
}

func (j *EnrichJob) Name() string {
	return "enrich"
}

func (j *EnrichJob) Run(ctx context.Context) error {
	if j.capture == nil {
		return nil
	}
	return j.capture.EnrichPending(ctx, j.batch)
}
