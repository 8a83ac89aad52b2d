package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/reclaim/internal/config"
	"github.com/your-org/reclaim/internal/models"
)

// ErrMatchNotFound is returned when a score update targets a pair that
// has no existing match row.
var ErrMatchNotFound = errors.New("match not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Cases ---

func (s *PostgresStore) CreateCase(ctx context.Context, c *models.Case) error {
	c.ID = uuid.New()
	c.Status = models.CaseStatusOpen
	return s.pool.QueryRow(ctx,
		`INSERT INTO cases (id, case_type, category, title, lat, lon, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		c.ID, c.Type, c.Category, c.Title, c.Lat, c.Lon, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *PostgresStore) GetCase(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c := &models.Case{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, case_type, category, title, lat, lon, status, created_at, updated_at
		 FROM cases WHERE id = $1`, id,
	).Scan(&c.ID, &c.Type, &c.Category, &c.Title, &c.Lat, &c.Lon, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListCases(ctx context.Context, caseType *models.CaseType) ([]models.Case, error) {
	query := `SELECT id, case_type, category, title, lat, lon, status, created_at, updated_at
	          FROM cases`
	var args []interface{}
	if caseType != nil {
		query += ` WHERE case_type = $1`
		args = append(args, *caseType)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		var c models.Case
		if err := rows.Scan(&c.ID, &c.Type, &c.Category, &c.Title, &c.Lat, &c.Lon,
			&c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func (s *PostgresStore) CloseCase(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cases SET status = $1, updated_at = now() WHERE id = $2`,
		models.CaseStatusClosed, id)
	if err != nil {
		return fmt.Errorf("close case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case not found")
	}
	return nil
}

// --- Photos ---

func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	p.ID = uuid.New()
	p.Status = models.PhotoStatusPending
	return s.pool.QueryRow(ctx,
		`INSERT INTO photos (id, case_id, object_key, status)
		 VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		p.ID, p.CaseID, p.ObjectKey, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// featureRow holds the nullable descriptor columns of a photos row.
// Every descriptor column is NULL until SaveFeatures runs, so scans go
// through pointers before landing on the FeatureSet.
type featureRow struct {
	phash    *string
	avgColor []int16
	bucket   *int16
	emb      *pgvector.Vector
}

func (r *featureRow) apply(fs *models.FeatureSet) {
	fs.ColorBucket = -1
	if r.phash != nil {
		fs.PHash = *r.phash
	}
	if r.bucket != nil {
		fs.ColorBucket = *r.bucket
	}
	fs.AvgColor = colorFromInts(r.avgColor)
	if r.emb != nil {
		fs.Embedding = r.emb.Slice()
	}
}

func (s *PostgresStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p := &models.Photo{}
	var fr featureRow
	err := s.pool.QueryRow(ctx,
		`SELECT id, case_id, object_key, status, phash, avg_color, color_bucket,
		        ocr_tokens, identifiers, luma_hist, shape, embedding, created_at, updated_at
		 FROM photos WHERE id = $1`, id,
	).Scan(&p.ID, &p.CaseID, &p.ObjectKey, &p.Status, &fr.phash, &fr.avgColor,
		&fr.bucket, &p.Features.OCRTokens, &p.Features.Identifiers,
		&p.Features.LumaHist, &p.Features.Shape, &fr.emb, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	fr.apply(&p.Features)
	return p, nil
}

// SaveFeatures persists an extracted FeatureSet onto the photo record and
// marks it ready. Re-extraction overwrites all descriptor columns.
func (s *PostgresStore) SaveFeatures(ctx context.Context, photoID uuid.UUID, fs *models.FeatureSet) error {
	var emb *pgvector.Vector
	if len(fs.Embedding) > 0 {
		v := pgvector.NewVector(fs.Embedding)
		emb = &v
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE photos
		 SET status = $1, phash = $2, avg_color = $3, color_bucket = $4,
		     ocr_tokens = $5, identifiers = $6, luma_hist = $7, shape = $8,
		     embedding = $9, updated_at = now()
		 WHERE id = $10`,
		models.PhotoStatusReady, fs.PHash, colorToInts(fs.AvgColor), fs.ColorBucket,
		fs.OCRTokens, fs.Identifiers, fs.LumaHist, fs.Shape, emb, photoID)
	if err != nil {
		return fmt.Errorf("save features: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetPhotoStatus(ctx context.Context, photoID uuid.UUID, status models.PhotoStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE photos SET status = $1, updated_at = now() WHERE id = $2`, status, photoID)
	return err
}

// --- Candidates ---

// Candidate is one opposite-type photo pulled from the store for scoring,
// along with the case attributes the proxy rank and location score need.
type Candidate struct {
	Photo    models.Photo
	CaseType models.CaseType
	Category string
	Lat      *float64
	Lon      *float64
}

// CandidateQuery bounds the candidate pre-filter.
type CandidateQuery struct {
	SourcePhotoID uuid.UUID
	SourceCaseID  uuid.UUID
	OppositeLost  bool // true when candidates must come from lost-side cases
	Category      string
	Lat           *float64
	Lon           *float64
	RadiusKM      float64
	Since         time.Time
	Limit         int
}

// FindCandidates returns ready photos from open opposite-type cases,
// filtered by category (when both sides set one), geographic radius
// (when both sides are geolocated) and recency. Ordering is by case
// creation time then photo id, so the result set is deterministic for a
// given store state. When the source photo has an embedding the nearest
// vectors are preferred via pgvector cosine distance.
func (s *PostgresStore) FindCandidates(ctx context.Context, q CandidateQuery, srcEmbedding []float32) ([]Candidate, error) {
	where := `WHERE p.status = 'ready'
	  AND c.status = 'open'
	  AND c.id <> $1
	  AND p.id <> $2
	  AND c.created_at >= $3
	  AND (c.case_type IN ('lost','missing_person','pet')) = $4`
	args := []interface{}{q.SourceCaseID, q.SourcePhotoID, q.Since, q.OppositeLost}
	argIdx := 5

	if q.Category != "" {
		where += fmt.Sprintf(" AND (c.category = '' OR c.category = $%d)", argIdx)
		args = append(args, q.Category)
		argIdx++
	}
	if q.Lat != nil && q.Lon != nil && q.RadiusKM > 0 {
		// Haversine distance in km; rows without a location pass through.
		where += fmt.Sprintf(` AND (c.lat IS NULL OR c.lon IS NULL OR
		  6371 * acos(least(1.0,
		    cos(radians($%d)) * cos(radians(c.lat)) * cos(radians(c.lon) - radians($%d))
		    + sin(radians($%d)) * sin(radians(c.lat)))) <= $%d)`,
			argIdx, argIdx+1, argIdx+2, argIdx+3)
		args = append(args, *q.Lat, *q.Lon, *q.Lat, q.RadiusKM)
		argIdx += 4
	}

	order := " ORDER BY c.created_at DESC, p.id"
	if len(srcEmbedding) > 0 {
		order = fmt.Sprintf(" ORDER BY p.embedding <=> $%d NULLS LAST, p.id", argIdx)
		args = append(args, pgvector.NewVector(srcEmbedding))
		argIdx++
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT p.id, p.case_id, p.object_key, p.status,
	    p.phash, p.avg_color, p.color_bucket, p.ocr_tokens, p.identifiers,
	    p.luma_hist, p.shape, p.embedding, p.created_at, p.updated_at,
	    c.case_type, c.category, c.lat, c.lon
	  FROM photos p
	  JOIN cases c ON c.id = p.case_id
	  %s%s LIMIT $%d`, where, order, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var cand Candidate
		var fr featureRow
		if err := rows.Scan(&cand.Photo.ID, &cand.Photo.CaseID, &cand.Photo.ObjectKey,
			&cand.Photo.Status, &fr.phash, &fr.avgColor,
			&fr.bucket, &cand.Photo.Features.OCRTokens,
			&cand.Photo.Features.Identifiers, &cand.Photo.Features.LumaHist,
			&cand.Photo.Features.Shape, &fr.emb, &cand.Photo.CreatedAt, &cand.Photo.UpdatedAt,
			&cand.CaseType, &cand.Category, &cand.Lat, &cand.Lon); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		fr.apply(&cand.Photo.Features)
		out = append(out, cand)
	}
	return out, nil
}

// --- Matches ---

// InsertMatch inserts a new pending match row. The unique index on
// (source_photo_id, target_photo_id) resolves concurrent discovery of the
// same pair: on conflict nothing is inserted and created=false is
// returned, in which case the caller re-scores the existing row instead.
func (s *PostgresStore) InsertMatch(ctx context.Context, m *models.PhotoMatch) (created bool, err error) {
	m.ID = uuid.New()
	m.Status = models.MatchStatusPending
	details, err := json.Marshal(m.Details)
	if err != nil {
		return false, fmt.Errorf("marshal match details: %w", err)
	}

	var createdAt time.Time
	err = s.pool.QueryRow(ctx,
		`INSERT INTO photo_matches (
		   id, source_photo_id, source_case_id, target_photo_id, target_case_id,
		   overall_score, score_embedding, score_hash, score_text, score_color,
		   score_visual, score_shape, match_type, match_details, matched_identifiers,
		   location_score, distance_km, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		 ON CONFLICT (source_photo_id, target_photo_id) DO NOTHING
		 RETURNING created_at`,
		m.ID, m.SourcePhotoID, m.SourceCaseID, m.TargetPhotoID, m.TargetCaseID,
		m.OverallScore, m.Scores.Embedding, m.Scores.Hash, m.Scores.Text,
		m.Scores.Color, m.Scores.Visual, m.Scores.Shape, m.MatchType, details,
		m.MatchedIdentifiers, m.LocationScore, m.DistanceKM, m.Status,
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert match: %w", err)
	}
	m.CreatedAt = createdAt
	return true, nil
}

// UpdateMatchScores overwrites the computed score fields of an existing
// pair. Status, notification flags and feedback are never touched here.
func (s *PostgresStore) UpdateMatchScores(ctx context.Context, m *models.PhotoMatch) error {
	details, err := json.Marshal(m.Details)
	if err != nil {
		return fmt.Errorf("marshal match details: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`UPDATE photo_matches SET
		   overall_score = $1, score_embedding = $2, score_hash = $3,
		   score_text = $4, score_color = $5, score_visual = $6, score_shape = $7,
		   match_type = $8, match_details = $9, matched_identifiers = $10,
		   location_score = $11, distance_km = $12, updated_at = now()
		 WHERE source_photo_id = $13 AND target_photo_id = $14
		 RETURNING id, status`,
		m.OverallScore, m.Scores.Embedding, m.Scores.Hash, m.Scores.Text,
		m.Scores.Color, m.Scores.Visual, m.Scores.Shape, m.MatchType, details,
		m.MatchedIdentifiers, m.LocationScore, m.DistanceKM,
		m.SourcePhotoID, m.TargetPhotoID,
	).Scan(&m.ID, &m.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("update match scores: %w", err)
	}
	return nil
}

const matchColumns = `id, source_photo_id, source_case_id, target_photo_id, target_case_id,
	overall_score, score_embedding, score_hash, score_text, score_color,
	score_visual, score_shape, match_type, match_details, matched_identifiers,
	location_score, distance_km, status, source_notified, target_notified,
	notified_at, viewed_at, resolved_at,
	source_verdict, source_reasons, source_detail, source_feedback_at,
	target_verdict, target_reasons, target_detail, target_feedback_at,
	created_at, updated_at`

func scanMatch(row pgx.Row) (*models.PhotoMatch, error) {
	m := &models.PhotoMatch{}
	var details []byte
	var srcVerdict, tgtVerdict *string
	var srcReasons, tgtReasons []string
	var srcDetail, tgtDetail *string
	err := row.Scan(&m.ID, &m.SourcePhotoID, &m.SourceCaseID, &m.TargetPhotoID, &m.TargetCaseID,
		&m.OverallScore, &m.Scores.Embedding, &m.Scores.Hash, &m.Scores.Text, &m.Scores.Color,
		&m.Scores.Visual, &m.Scores.Shape, &m.MatchType, &details, &m.MatchedIdentifiers,
		&m.LocationScore, &m.DistanceKM, &m.Status, &m.SourceNotified, &m.TargetNotified,
		&m.NotifiedAt, &m.ViewedAt, &m.ResolvedAt,
		&srcVerdict, &srcReasons, &srcDetail, &m.SourceFeedback.RecordedAt,
		&tgtVerdict, &tgtReasons, &tgtDetail, &m.TargetFeedback.RecordedAt,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &m.Details); err != nil {
			return nil, fmt.Errorf("unmarshal match details: %w", err)
		}
	}
	m.SourceFeedback.Verdict, m.SourceFeedback.Reasons, m.SourceFeedback.Detail = feedbackFields(srcVerdict, srcReasons, srcDetail)
	m.TargetFeedback.Verdict, m.TargetFeedback.Reasons, m.TargetFeedback.Detail = feedbackFields(tgtVerdict, tgtReasons, tgtDetail)
	return m, nil
}

func feedbackFields(verdict *string, reasons []string, detail *string) (models.Verdict, []models.RejectReason, string) {
	var v models.Verdict
	if verdict != nil {
		v = models.Verdict(*verdict)
	}
	var rs []models.RejectReason
	for _, r := range reasons {
		rs = append(rs, models.RejectReason(r))
	}
	var d string
	if detail != nil {
		d = *detail
	}
	return v, rs, d
}

func (s *PostgresStore) GetMatch(ctx context.Context, id uuid.UUID) (*models.PhotoMatch, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM photo_matches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMatchesByCase(ctx context.Context, caseID uuid.UUID) ([]models.PhotoMatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM photo_matches
		 WHERE source_case_id = $1 OR target_case_id = $1
		 ORDER BY overall_score DESC, created_at DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []models.PhotoMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, nil
}

// TransitionMatch moves a match from one status to another with a single
// compare-and-swap UPDATE. Returns false when the row was not in the
// expected status, which the caller reports as an invalid transition.
// The WHERE clause on the current status is the per-match serialization
// point: concurrent transitions cannot interleave.
func (s *PostgresStore) TransitionMatch(ctx context.Context, id uuid.UUID, from, to models.MatchStatus) (bool, error) {
	set := `status = $1, updated_at = now()`
	switch to {
	case models.MatchStatusNotified:
		set += `, notified_at = coalesce(notified_at, now())`
	case models.MatchStatusViewed:
		set += `, viewed_at = coalesce(viewed_at, now())`
	case models.MatchStatusConfirmed, models.MatchStatusRejected, models.MatchStatusExpired:
		set += `, resolved_at = now()`
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE photo_matches SET `+set+` WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return false, fmt.Errorf("transition match: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetNotified records that one side's notification was dispatched.
func (s *PostgresStore) SetNotified(ctx context.Context, id uuid.UUID, side models.MatchSide) error {
	col := "source_notified"
	if side == models.SideTarget {
		col = "target_notified"
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE photo_matches SET `+col+` = true, updated_at = now() WHERE id = $1`, id)
	return err
}

// RecordFeedback stores one side's verdict inside a row-locked
// transaction and returns the updated match. The resolve callback runs
// against the locked row with this side's verdict applied, so the
// status it computes can never be based on a stale snapshot: a
// confirmation arriving after a committed rejection observes the
// rejected status and leaves it alone.
func (s *PostgresStore) RecordFeedback(ctx context.Context, id uuid.UUID, side models.MatchSide, fb models.SideFeedback, resolve func(*models.PhotoMatch) *models.MatchStatus) (*models.PhotoMatch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin feedback tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := scanMatch(tx.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM photo_matches WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("lock match: %w", err)
	}

	prefix := "source"
	if side == models.SideTarget {
		prefix = "target"
	}
	reasons := make([]string, 0, len(fb.Reasons))
	for _, r := range fb.Reasons {
		reasons = append(reasons, string(r))
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`UPDATE photo_matches SET %s_verdict = $1, %s_reasons = $2, %s_detail = $3,
		 %s_feedback_at = now(), updated_at = now() WHERE id = $4`,
		prefix, prefix, prefix, prefix),
		fb.Verdict, reasons, fb.Detail, id); err != nil {
		return nil, fmt.Errorf("record feedback: %w", err)
	}

	if side == models.SideSource {
		m.SourceFeedback = fb
	} else {
		m.TargetFeedback = fb
	}
	var newStatus *models.MatchStatus
	if resolve != nil {
		newStatus = resolve(m)
	}
	if newStatus != nil {
		set := `status = $1, updated_at = now()`
		if newStatus.Terminal() {
			set += `, resolved_at = now()`
		}
		if _, err := tx.Exec(ctx,
			`UPDATE photo_matches SET `+set+` WHERE id = $2`, *newStatus, id); err != nil {
			return nil, fmt.Errorf("resolve match: %w", err)
		}
	}

	m, err = scanMatch(tx.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM photo_matches WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("reload match: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit feedback tx: %w", err)
	}
	return m, nil
}

// ExpireOlderThan moves every unresolved match created before the cutoff
// to expired and returns the affected rows for event emission.
func (s *PostgresStore) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]models.PhotoMatch, error) {
	return s.expireWhere(ctx,
		`status IN ('pending','notified','viewed') AND created_at < $1`, cutoff)
}

// ExpireForCase expires every unresolved match touching the given case.
func (s *PostgresStore) ExpireForCase(ctx context.Context, caseID uuid.UUID) ([]models.PhotoMatch, error) {
	return s.expireWhere(ctx,
		`status IN ('pending','notified','viewed') AND (source_case_id = $1 OR target_case_id = $1)`, caseID)
}

func (s *PostgresStore) expireWhere(ctx context.Context, where string, arg interface{}) ([]models.PhotoMatch, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE photo_matches SET status = 'expired', resolved_at = now(), updated_at = now()
		 WHERE `+where+` RETURNING `+matchColumns, arg)
	if err != nil {
		return nil, fmt.Errorf("expire matches: %w", err)
	}
	defer rows.Close()

	var expired []models.PhotoMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired match: %w", err)
		}
		expired = append(expired, *m)
	}
	return expired, nil
}

// --- helpers ---

func colorToInts(c *[3]uint8) []int16 {
	if c == nil {
		return nil
	}
	return []int16{int16(c[0]), int16(c[1]), int16(c[2])}
}

func colorFromInts(v []int16) *[3]uint8 {
	if len(v) != 3 {
		return nil
	}
	return &[3]uint8{uint8(v[0]), uint8(v[1]), uint8(v[2])}
}
