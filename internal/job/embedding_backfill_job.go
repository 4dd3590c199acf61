package job

import (
	"context"

	"github.com/xxxsen/recall/internal/service"
)

type EmbeddingBackfillJob struct {
	admin *service.AdminService
	batch uint
}

func NewEmbeddingBackfillJob(admin *service.AdminService, batch uint) *EmbeddingBackfillJob {
	if batch == 0 {
		batch = 50
	}
	return &EmbeddingBackfillJob{admin: admin, batch: batch}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.admin == nil {
		return nil
	}
	return j.admin.BackfillEmbeddings(ctx, j.batch)
}
