package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/dbutil"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

var recordColumns = []string{
	"id", "owner_id", "text", "context", "tag",
	"embedding", "embedding_model", "search_keywords",
	"content_hash", "enriched", "ctime", "mtime",
}

// RecordRepo is the canonical store for one record collection. The memory and
// post collections share the schema, so one repo type serves both tables.
type RecordRepo struct {
	db    *sql.DB
	table string
}

func NewRecordRepo(db *sql.DB, table string) *RecordRepo {
	return &RecordRepo{db: db, table: table}
}

func (r *RecordRepo) Table() string {
	return r.table
}

func (r *RecordRepo) Create(ctx context.Context, rec *model.Record) error {
	contextBlob, err := json.Marshal(orEmptyContext(rec.Context))
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":              rec.ID,
		"owner_id":        rec.OwnerID,
		"text":            rec.Text,
		"context":         contextBlob,
		"tag":             rec.Tag,
		"embedding":       EmbeddingValue(rec.EmbeddingVector),
		"embedding_model": rec.EmbeddingModel,
		"search_keywords": rec.SearchKeywords,
		"content_hash":    rec.ContentHash,
		"enriched":        rec.Enriched,
		"ctime":           rec.Ctime,
		"mtime":           rec.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert(r.table, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *RecordRepo) GetByID(ctx context.Context, ownerID, id string) (*model.Record, error) {
	where := map[string]interface{}{
		"id":       id,
		"owner_id": ownerID,
	}
	recs, err := r.selectRecords(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &recs[0], nil
}

// ListByIDs joins vector index hits back to full rows. Ids with no matching
// row are simply absent from the result; the caller treats them as drift.
func (r *RecordRepo) ListByIDs(ctx context.Context, ownerID string, ids []string) ([]model.Record, error) {
	if len(ids) == 0 {
		return []model.Record{}, nil
	}
	in := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		in = append(in, id)
	}
	where := map[string]interface{}{
		"owner_id": ownerID,
		"id in":    in,
	}
	return r.selectRecords(ctx, where)
}

func (r *RecordRepo) List(ctx context.Context, ownerID string, limit, offset uint) ([]model.Record, error) {
	where := map[string]interface{}{
		"owner_id": ownerID,
		"_orderby": "ctime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	return r.selectRecords(ctx, where)
}

// UpdateFields applies a partial update: only the given columns change, the
// rest of the row is untouched.
func (r *RecordRepo) UpdateFields(ctx context.Context, ownerID, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	where := map[string]interface{}{
		"id":       id,
		"owner_id": ownerID,
	}
	sqlStr, args, err := builder.BuildUpdate(r.table, where, fields)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *RecordRepo) Delete(ctx context.Context, ownerID, id string) error {
	where := map[string]interface{}{
		"id":       id,
		"owner_id": ownerID,
	}
	sqlStr, args, err := builder.BuildDelete(r.table, where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// GetByExactText backs the bare-URL dedup check: byte-identical text for the
// same owner.
func (r *RecordRepo) GetByExactText(ctx context.Context, ownerID, text string) (*model.Record, error) {
	where := map[string]interface{}{
		"owner_id": ownerID,
		"text":     text,
		"_orderby": "ctime desc",
		"_limit":   []uint{0, 1},
	}
	recs, err := r.selectRecords(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &recs[0], nil
}

// FindByContentHash backs the hash dedup check. The window (rows created
// since the cutoff, newest 100) is a documented heuristic, not a global
// guarantee; resubmission outside the window is accepted again on purpose.
func (r *RecordRepo) FindByContentHash(ctx context.Context, ownerID string, hash int64, sinceMillis int64) (*model.Record, error) {
	where := map[string]interface{}{
		"owner_id":     ownerID,
		"content_hash": hash,
		"ctime >=":     sinceMillis,
		"_orderby":     "ctime desc",
		"_limit":       []uint{0, 100},
	}
	recs, err := r.selectRecords(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &recs[0], nil
}

// ListRecentWithEmbedding feeds the legacy brute-force search: the newest
// rows that carry a stored vector.
func (r *RecordRepo) ListRecentWithEmbedding(ctx context.Context, ownerID string, limit uint) ([]model.Record, error) {
	if limit == 0 {
		limit = 100
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE owner_id = ? AND embedding IS NOT NULL ORDER BY ctime DESC LIMIT ?",
		strings.Join(recordColumns, ", "), r.table,
	)
	sqlStr, args := dbutil.Finalize(query, []interface{}{ownerID, limit})
	return r.queryRecords(ctx, sqlStr, args...)
}

// SearchKeywords is the degraded no-embedding fallback: an OR of substring
// matches over text and precomputed keywords, newest first.
func (r *RecordRepo) SearchKeywords(ctx context.Context, ownerID string, keywords []string, limit uint) ([]model.Record, error) {
	if len(keywords) == 0 {
		return []model.Record{}, nil
	}
	if limit == 0 {
		limit = 20
	}
	conds := make([]string, 0, len(keywords))
	args := []interface{}{ownerID}
	for _, kw := range keywords {
		conds = append(conds, "(text ILIKE ? OR search_keywords ILIKE ?)")
		like := "%" + kw + "%"
		args = append(args, like, like)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE owner_id = ? AND (%s) ORDER BY ctime DESC LIMIT ?",
		strings.Join(recordColumns, ", "), r.table, strings.Join(conds, " OR "),
	)
	args = append(args, limit)
	sqlStr, finalArgs := dbutil.Finalize(query, args)
	return r.queryRecords(ctx, sqlStr, finalArgs...)
}

// ListPendingEmbedding returns rows whose stored vector is missing or was
// produced by a different model than target; the backfill job re-embeds them.
func (r *RecordRepo) ListPendingEmbedding(ctx context.Context, targetModel string, limit uint) ([]model.Record, error) {
	if limit == 0 {
		limit = 50
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE text <> '' AND (embedding IS NULL OR embedding_model <> ?) ORDER BY ctime DESC LIMIT ?",
		strings.Join(recordColumns, ", "), r.table,
	)
	sqlStr, args := dbutil.Finalize(query, []interface{}{targetModel, limit})
	return r.queryRecords(ctx, sqlStr, args...)
}

// ListUnenrichedLinks returns saved URLs that have not been enriched yet.
func (r *RecordRepo) ListUnenrichedLinks(ctx context.Context, limit uint) ([]model.Record, error) {
	if limit == 0 {
		limit = 20
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE enriched = FALSE AND text LIKE 'http%%' ORDER BY ctime DESC LIMIT ?",
		strings.Join(recordColumns, ", "), r.table,
	)
	sqlStr, args := dbutil.Finalize(query, []interface{}{limit})
	return r.queryRecords(ctx, sqlStr, args...)
}

// ListWithEmbedding pages through every row carrying a vector; used by the
// administrative index resync.
func (r *RecordRepo) ListWithEmbedding(ctx context.Context, limit, offset uint) ([]model.Record, error) {
	if limit == 0 {
		limit = 200
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE embedding IS NOT NULL ORDER BY ctime ASC LIMIT ? OFFSET ?",
		strings.Join(recordColumns, ", "), r.table,
	)
	sqlStr, args := dbutil.Finalize(query, []interface{}{limit, offset})
	return r.queryRecords(ctx, sqlStr, args...)
}

type MigrationStatus struct {
	Table    string `json:"table"`
	Total    int    `json:"total"`
	Migrated int    `json:"migrated"`
	Pending  int    `json:"pending"`
	NoText   int    `json:"no_text"`
}

// MigrationStatusFor counts how many rows carry an embedding from the target
// model, how many still need one, and how many have nothing to embed.
func (r *RecordRepo) MigrationStatusFor(ctx context.Context, targetModel string) (*MigrationStatus, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(1),
			COUNT(1) FILTER (WHERE embedding IS NOT NULL AND embedding_model = $1),
			COUNT(1) FILTER (WHERE text <> '' AND (embedding IS NULL OR embedding_model <> $1)),
			COUNT(1) FILTER (WHERE text = '')
		FROM %s`, r.table)
	row := r.db.QueryRowContext(ctx, query, targetModel)
	status := &MigrationStatus{Table: r.table}
	if err := row.Scan(&status.Total, &status.Migrated, &status.Pending, &status.NoText); err != nil {
		return nil, err
	}
	return status, nil
}

func (r *RecordRepo) selectRecords(ctx context.Context, where map[string]interface{}) ([]model.Record, error) {
	sqlStr, args, err := builder.BuildSelect(r.table, where, recordColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.queryRecords(ctx, sqlStr, args...)
}

func (r *RecordRepo) queryRecords(ctx context.Context, query string, args ...interface{}) ([]model.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recs := make([]model.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func scanRecord(rows *sql.Rows) (*model.Record, error) {
	var rec model.Record
	var contextBlob []byte
	var embedding sql.NullString
	if err := rows.Scan(
		&rec.ID, &rec.OwnerID, &rec.Text, &contextBlob, &rec.Tag,
		&embedding, &rec.EmbeddingModel, &rec.SearchKeywords,
		&rec.ContentHash, &rec.Enriched, &rec.Ctime, &rec.Mtime,
	); err != nil {
		return nil, err
	}
	if len(contextBlob) > 0 {
		if err := json.Unmarshal(contextBlob, &rec.Context); err != nil {
			return nil, err
		}
	}
	if embedding.Valid && embedding.String != "" {
		var vec pgvector.Vector
		if err := vec.Scan(embedding.String); err != nil {
			return nil, err
		}
		rec.EmbeddingVector = vec.Slice()
	}
	return &rec, nil
}

func EmbeddingValue(vec []float32) interface{} {
	if len(vec) == 0 {
		return nil
	}
	return pgvector.NewVector(vec)
}

// ContextValue marshals a context map into the form UpdateFields expects for
// the jsonb column.
func ContextValue(c model.Context) interface{} {
	blob, err := json.Marshal(orEmptyContext(c))
	if err != nil {
		return []byte("{}")
	}
	return blob
}

func orEmptyContext(c model.Context) model.Context {
	if c == nil {
		return model.Context{}
	}
	return c
}
