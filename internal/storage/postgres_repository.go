package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"reelvault/internal/models"
)

// postgresRepository backs Repository with a pgx connection pool. Optional
// string columns (team scoping, share-group team ids) are stored as NULL and
// surfaced to callers as empty strings, matching the in-memory store.
type postgresRepository struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
	now  func() time.Time
}

// NewPostgresRepository opens a Postgres-backed repository and applies the
// schema migration before returning.
func NewPostgresRepository(dsn string, opts ...Option) (Repository, error) {
	cfg := newPostgresConfig(dsn, opts...)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections >= 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	repo := &postgresRepository{
		pool: pool,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout*4)
	defer cancel()
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// Close drains the pool, honouring the context deadline.
func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.cfg.QueryTimeout)
}

func rollbackTx(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx)
}

func pgErrCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isUniqueViolation(err error) bool     { return pgErrCode(err, "23505") }
func isForeignKeyViolation(err error) bool { return pgErrCode(err, "23503") }

// nullable maps the empty string to SQL NULL for optional reference columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- users ---

func (r *postgresRepository) CreateUser(params CreateUserParams) (models.User, error) {
	displayName := strings.TrimSpace(params.DisplayName)
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if displayName == "" {
		return models.User{}, errors.New("displayName is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return models.User{}, errors.New("a valid email is required")
	}
	if len(params.Password) < 8 {
		return models.User{}, errors.New("password must be at least 8 characters")
	}
	hashed, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := generateID()
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		ID:           id,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    r.now(),
	}
	ctx, cancel := r.opCtx()
	defer cancel()
	_, err = r.pool.Exec(ctx,
		"INSERT INTO users (id, display_name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)",
		user.ID, user.DisplayName, user.Email, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return models.User{}, fmt.Errorf("email %s is already registered", email)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) AuthenticateUser(email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}
	user, ok := r.FindUserByEmail(email)
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

const userColumns = "id, display_name, email, password_hash, created_at"

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	return user, err
}

func (r *postgresRepository) GetUser(id string) (models.User, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	user, err := scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

func (r *postgresRepository) FindUserByEmail(email string) (models.User, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	user, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", strings.TrimSpace(email)))
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

// --- teams ---

func (r *postgresRepository) CreateTeam(name, ownerID string) (models.Team, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.Team{}, errors.New("team name is required")
	}
	id, err := generateID()
	if err != nil {
		return models.Team{}, err
	}
	team := models.Team{ID: id, Name: trimmed, CreatedAt: r.now()}
	ctx, cancel := r.opCtx()
	defer cancel()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Team{}, fmt.Errorf("begin create team: %w", err)
	}
	defer rollbackTx(ctx, tx)
	if _, err := tx.Exec(ctx,
		"INSERT INTO teams (id, name, created_at) VALUES ($1, $2, $3)",
		team.ID, team.Name, team.CreatedAt); err != nil {
		return models.Team{}, fmt.Errorf("insert team: %w", err)
	}
	_, err = tx.Exec(ctx,
		"INSERT INTO team_memberships (team_id, user_id, role, created_at) VALUES ($1, $2, $3, $4)",
		team.ID, ownerID, string(models.TeamRoleOwner), team.CreatedAt)
	if isForeignKeyViolation(err) {
		return models.Team{}, fmt.Errorf("user %s not found", ownerID)
	}
	if err != nil {
		return models.Team{}, fmt.Errorf("insert owner membership: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Team{}, fmt.Errorf("commit create team: %w", err)
	}
	return team, nil
}

func (r *postgresRepository) GetTeam(id string) (models.Team, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	var team models.Team
	err := r.pool.QueryRow(ctx, "SELECT id, name, created_at FROM teams WHERE id = $1", id).
		Scan(&team.ID, &team.Name, &team.CreatedAt)
	if err != nil {
		return models.Team{}, false
	}
	return team, true
}

func (r *postgresRepository) ListTeamsForUser(userID string) []models.Team {
	ctx, cancel := r.opCtx()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		"SELECT t.id, t.name, t.created_at FROM teams t JOIN team_memberships m ON m.team_id = t.id WHERE m.user_id = $1 ORDER BY t.created_at, t.id",
		userID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	teams := make([]models.Team, 0)
	for rows.Next() {
		var team models.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.CreatedAt); err != nil {
			return nil
		}
		teams = append(teams, team)
	}
	return teams
}

func (r *postgresRepository) UpsertTeamMembership(teamID, userID string, role models.TeamRole) (models.TeamMembership, error) {
	switch role {
	case models.TeamRoleOwner, models.TeamRoleAdmin, models.TeamRoleMember:
	default:
		return models.TeamMembership{}, fmt.Errorf("unknown team role %q", role)
	}
	membership := models.TeamMembership{TeamID: teamID, UserID: userID, Role: role, CreatedAt: r.now()}
	ctx, cancel := r.opCtx()
	defer cancel()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO team_memberships (team_id, user_id, role, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role
		 RETURNING created_at`,
		teamID, userID, string(role), membership.CreatedAt).Scan(&membership.CreatedAt)
	if isForeignKeyViolation(err) {
		return models.TeamMembership{}, fmt.Errorf("team %s or user %s not found", teamID, userID)
	}
	if err != nil {
		return models.TeamMembership{}, fmt.Errorf("upsert membership: %w", err)
	}
	return membership, nil
}

func (r *postgresRepository) RemoveTeamMembership(teamID, userID string) error {
	ctx, cancel := r.opCtx()
	defer cancel()
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM team_memberships WHERE team_id = $1 AND user_id = $2", teamID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s is not a member of team %s", userID, teamID)
	}
	return nil
}

func (r *postgresRepository) GetTeamMembership(teamID, userID string) (models.TeamMembership, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	var membership models.TeamMembership
	var role string
	err := r.pool.QueryRow(ctx,
		"SELECT team_id, user_id, role, created_at FROM team_memberships WHERE team_id = $1 AND user_id = $2",
		teamID, userID).Scan(&membership.TeamID, &membership.UserID, &role, &membership.CreatedAt)
	if err != nil {
		return models.TeamMembership{}, false
	}
	membership.Role = models.TeamRole(role)
	return membership, true
}

func (r *postgresRepository) ListTeamMemberships(teamID string) []models.TeamMembership {
	ctx, cancel := r.opCtx()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		"SELECT team_id, user_id, role, created_at FROM team_memberships WHERE team_id = $1 ORDER BY created_at, user_id",
		teamID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	memberships := make([]models.TeamMembership, 0)
	for rows.Next() {
		var membership models.TeamMembership
		var role string
		if err := rows.Scan(&membership.TeamID, &membership.UserID, &role, &membership.CreatedAt); err != nil {
			return nil
		}
		membership.Role = models.TeamRole(role)
		memberships = append(memberships, membership)
	}
	return memberships
}

// --- storage credentials ---

const credentialColumns = "id, COALESCE(user_id, ''), COALESCE(team_id, ''), encrypted_access_key_id, encrypted_secret_access_key, bucket_name, region, transcode_role_arn, created_at, updated_at"

func scanCredential(row pgx.Row) (models.StorageCredential, error) {
	var credential models.StorageCredential
	err := row.Scan(&credential.ID, &credential.UserID, &credential.TeamID,
		&credential.EncryptedAccessKeyID, &credential.EncryptedSecretAccessKey,
		&credential.BucketName, &credential.Region, &credential.TranscodeRoleARN,
		&credential.CreatedAt, &credential.UpdatedAt)
	return credential, err
}

func (r *postgresRepository) UpsertStorageCredential(params UpsertStorageCredentialParams) (models.StorageCredential, error) {
	if (params.UserID == "") == (params.TeamID == "") {
		return models.StorageCredential{}, ErrCredentialScope
	}
	if params.EncryptedAccessKeyID == "" || params.EncryptedSecretAccessKey == "" {
		return models.StorageCredential{}, errors.New("encrypted access key material is required")
	}
	if params.BucketName == "" || params.Region == "" {
		return models.StorageCredential{}, errors.New("bucketName and region are required")
	}
	id, err := generateID()
	if err != nil {
		return models.StorageCredential{}, err
	}
	now := r.now()
	conflict := "(user_id) WHERE user_id IS NOT NULL"
	if params.TeamID != "" {
		conflict = "(team_id) WHERE team_id IS NOT NULL"
	}
	query := `INSERT INTO storage_credentials
		(id, user_id, team_id, encrypted_access_key_id, encrypted_secret_access_key, bucket_name, region, transcode_role_arn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ` + conflict + ` DO UPDATE SET
			encrypted_access_key_id = EXCLUDED.encrypted_access_key_id,
			encrypted_secret_access_key = EXCLUDED.encrypted_secret_access_key,
			bucket_name = EXCLUDED.bucket_name,
			region = EXCLUDED.region,
			transcode_role_arn = EXCLUDED.transcode_role_arn,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + credentialColumns
	ctx, cancel := r.opCtx()
	defer cancel()
	credential, err := scanCredential(r.pool.QueryRow(ctx, query,
		id, nullable(params.UserID), nullable(params.TeamID),
		params.EncryptedAccessKeyID, params.EncryptedSecretAccessKey,
		params.BucketName, params.Region, params.TranscodeRoleARN, now, now))
	if isForeignKeyViolation(err) {
		return models.StorageCredential{}, errors.New("credential scope target not found")
	}
	if err != nil {
		return models.StorageCredential{}, fmt.Errorf("upsert storage credential: %w", err)
	}
	return credential, nil
}

func (r *postgresRepository) GetStorageCredentialForUser(userID string) (models.StorageCredential, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	credential, err := scanCredential(r.pool.QueryRow(ctx,
		"SELECT "+credentialColumns+" FROM storage_credentials WHERE user_id = $1", userID))
	if err != nil {
		return models.StorageCredential{}, false
	}
	return credential, true
}

func (r *postgresRepository) GetStorageCredentialForTeam(teamID string) (models.StorageCredential, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	credential, err := scanCredential(r.pool.QueryRow(ctx,
		"SELECT "+credentialColumns+" FROM storage_credentials WHERE team_id = $1", teamID))
	if err != nil {
		return models.StorageCredential{}, false
	}
	return credential, true
}

func (r *postgresRepository) DeleteStorageCredential(id string) error {
	ctx, cancel := r.opCtx()
	defer cancel()
	tag, err := r.pool.Exec(ctx, "DELETE FROM storage_credentials WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete storage credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage credential %s not found", id)
	}
	return nil
}

// --- videos ---

const videoColumns = "id, owner_id, COALESCE(team_id, ''), title, description, original_key, hls_manifest_key, transcoding_job_id, transcoding_status, transcoding_error, visibility, created_at, updated_at"

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	var status, visibility string
	err := row.Scan(&video.ID, &video.OwnerID, &video.TeamID, &video.Title, &video.Description,
		&video.OriginalKey, &video.HLSManifestKey, &video.TranscodingJobID,
		&status, &video.TranscodingError, &visibility, &video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		return models.Video{}, err
	}
	video.TranscodingStatus = models.TranscodingStatus(status)
	video.Visibility = models.Visibility(visibility)
	return video, nil
}

func (r *postgresRepository) queryVideos(query string, args ...any) []models.Video {
	ctx, cancel := r.opCtx()
	defer cancel()
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()
	videos := make([]models.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil
		}
		videos = append(videos, video)
	}
	return videos
}

func (r *postgresRepository) CreateVideo(params CreateVideoParams) (models.Video, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Video{}, errors.New("title is required")
	}
	if strings.TrimSpace(params.OriginalKey) == "" {
		return models.Video{}, errors.New("originalKey is required")
	}
	visibility := params.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	id, err := generateID()
	if err != nil {
		return models.Video{}, err
	}
	now := r.now()
	video := models.Video{
		ID:                id,
		OwnerID:           params.OwnerID,
		TeamID:            params.TeamID,
		Title:             title,
		Description:       strings.TrimSpace(params.Description),
		OriginalKey:       params.OriginalKey,
		TranscodingStatus: models.TranscodingPending,
		Visibility:        visibility,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	ctx, cancel := r.opCtx()
	defer cancel()
	_, err = r.pool.Exec(ctx,
		`INSERT INTO videos (id, owner_id, team_id, title, description, original_key, hls_manifest_key, transcoding_job_id, transcoding_status, transcoding_error, visibility, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, '', '', $7, '', $8, $9, $10)`,
		video.ID, video.OwnerID, nullable(video.TeamID), video.Title, video.Description,
		video.OriginalKey, string(video.TranscodingStatus), string(video.Visibility),
		video.CreatedAt, video.UpdatedAt)
	if isForeignKeyViolation(err) {
		return models.Video{}, errors.New("video owner or team not found")
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("insert video: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) GetVideo(id string) (models.Video, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	video, err := scanVideo(r.pool.QueryRow(ctx, "SELECT "+videoColumns+" FROM videos WHERE id = $1", id))
	if err != nil {
		return models.Video{}, false
	}
	return video, true
}

func (r *postgresRepository) ListVideosByOwner(ownerID string) []models.Video {
	return r.queryVideos(
		"SELECT "+videoColumns+" FROM videos WHERE owner_id = $1 ORDER BY created_at DESC, id", ownerID)
}

func (r *postgresRepository) ListVideosByTeam(teamID string) []models.Video {
	return r.queryVideos(
		"SELECT "+videoColumns+" FROM videos WHERE team_id = $1 ORDER BY created_at DESC, id", teamID)
}

func (r *postgresRepository) ListVideosSharedWith(email, userID string) []models.Video {
	return r.queryVideos(
		`SELECT `+videoColumns+` FROM videos WHERE id IN (
			SELECT video_id FROM video_shares WHERE $1 <> '' AND lower(shared_with_email) = lower($1)
			UNION
			SELECT vgs.video_id FROM video_group_shares vgs
				JOIN share_groups g ON g.id = vgs.group_id
				LEFT JOIN share_group_members m ON m.group_id = g.id
			WHERE ($2 <> '' AND g.owner_id = $2)
				OR ($1 <> '' AND lower(m.email) = lower($1))
		) ORDER BY created_at DESC, id`,
		email, userID)
}

func (r *postgresRepository) UpdateVideo(id string, update VideoUpdate) (models.Video, error) {
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return models.Video{}, errors.New("title cannot be empty")
	}
	if update.Visibility != nil {
		switch *update.Visibility {
		case models.VisibilityPrivate, models.VisibilityPublic:
		default:
			return models.Video{}, fmt.Errorf("unknown visibility %q", *update.Visibility)
		}
	}
	var title, description, visibility any
	if update.Title != nil {
		title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		description = strings.TrimSpace(*update.Description)
	}
	if update.Visibility != nil {
		visibility = string(*update.Visibility)
	}
	ctx, cancel := r.opCtx()
	defer cancel()
	video, err := scanVideo(r.pool.QueryRow(ctx,
		`UPDATE videos SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			visibility = COALESCE($4, visibility),
			updated_at = $5
		 WHERE id = $1 RETURNING `+videoColumns,
		id, title, description, visibility, r.now()))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, fmt.Errorf("video %s not found", id)
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("update video: %w", err)
	}
	return video, nil
}

// videoTransitionErr maps a failed conditional update to the transition error
// the caller expects, re-reading the current status to tell a missing video
// apart from a guard violation.
func (r *postgresRepository) videoTransitionErr(ctx context.Context, id string, fallback error) error {
	var status string
	err := r.pool.QueryRow(ctx, "SELECT transcoding_status FROM videos WHERE id = $1", id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("video %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("read video status: %w", err)
	}
	if models.TranscodingStatus(status).Terminal() {
		return ErrVideoTerminal
	}
	return fallback
}

func (r *postgresRepository) MarkVideoProcessing(id, jobID, manifestKey string) (models.Video, error) {
	if strings.TrimSpace(jobID) == "" || strings.TrimSpace(manifestKey) == "" {
		return models.Video{}, errors.New("jobID and manifestKey are required")
	}
	ctx, cancel := r.opCtx()
	defer cancel()
	video, err := scanVideo(r.pool.QueryRow(ctx,
		`UPDATE videos SET transcoding_status = $4, transcoding_job_id = $2, hls_manifest_key = $3, transcoding_error = '', updated_at = $5
		 WHERE id = $1 AND transcoding_status = $6 RETURNING `+videoColumns,
		id, jobID, manifestKey, string(models.TranscodingProcessing), r.now(), string(models.TranscodingPending)))
	if errors.Is(err, pgx.ErrNoRows) {
		terr := r.videoTransitionErr(ctx, id, ErrVideoNotPending)
		if errors.Is(terr, ErrVideoTerminal) {
			// Any state other than PENDING refuses a second submission.
			terr = ErrVideoNotPending
		}
		return models.Video{}, terr
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("mark video processing: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) MarkVideoCompleted(id string) (models.Video, error) {
	ctx, cancel := r.opCtx()
	defer cancel()
	video, err := scanVideo(r.pool.QueryRow(ctx,
		`UPDATE videos SET transcoding_status = $2, transcoding_error = '', updated_at = $3
		 WHERE id = $1 AND transcoding_status = $4 RETURNING `+videoColumns,
		id, string(models.TranscodingCompleted), r.now(), string(models.TranscodingProcessing)))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, r.videoTransitionErr(ctx, id, ErrVideoNotProcessing)
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("mark video completed: %w", err)
	}
	return video, nil
}

func (r *postgresRepository) MarkVideoFailed(id, reason string) (models.Video, error) {
	ctx, cancel := r.opCtx()
	defer cancel()
	video, err := scanVideo(r.pool.QueryRow(ctx,
		`UPDATE videos SET transcoding_status = $2, transcoding_error = $3, updated_at = $4
		 WHERE id = $1 AND transcoding_status IN ($5, $6) RETURNING `+videoColumns,
		id, string(models.TranscodingFailed), strings.TrimSpace(reason), r.now(),
		string(models.TranscodingPending), string(models.TranscodingProcessing)))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, r.videoTransitionErr(ctx, id, ErrVideoTerminal)
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("mark video failed: %w", err)
	}
	return video, nil
}

// --- shares ---

func (r *postgresRepository) CreateVideoShare(videoID, email, sharedByUserID string) (models.VideoShare, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" || !strings.Contains(trimmed, "@") {
		return models.VideoShare{}, errors.New("a valid email is required")
	}
	id, err := generateID()
	if err != nil {
		return models.VideoShare{}, err
	}
	share := models.VideoShare{
		ID:              id,
		VideoID:         videoID,
		SharedWithEmail: trimmed,
		SharedByUserID:  sharedByUserID,
		CreatedAt:       r.now(),
	}
	ctx, cancel := r.opCtx()
	defer cancel()
	_, err = r.pool.Exec(ctx,
		"INSERT INTO video_shares (id, video_id, shared_with_email, shared_by_user_id, created_at) VALUES ($1, $2, $3, $4, $5)",
		share.ID, share.VideoID, share.SharedWithEmail, share.SharedByUserID, share.CreatedAt)
	if isUniqueViolation(err) {
		return models.VideoShare{}, fmt.Errorf("video is already shared with %s", trimmed)
	}
	if isForeignKeyViolation(err) {
		return models.VideoShare{}, fmt.Errorf("video %s not found", videoID)
	}
	if err != nil {
		return models.VideoShare{}, fmt.Errorf("insert video share: %w", err)
	}
	return share, nil
}

func (r *postgresRepository) ListVideoShares(videoID string) []models.VideoShare {
	ctx, cancel := r.opCtx()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		"SELECT id, video_id, shared_with_email, shared_by_user_id, created_at FROM video_shares WHERE video_id = $1 ORDER BY created_at, id",
		videoID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	shares := make([]models.VideoShare, 0)
	for rows.Next() {
		var share models.VideoShare
		if err := rows.Scan(&share.ID, &share.VideoID, &share.SharedWithEmail, &share.SharedByUserID, &share.CreatedAt); err != nil {
			return nil
		}
		shares = append(shares, share)
	}
	return shares
}

func (r *postgresRepository) DeleteVideoShare(id string) error {
	ctx, cancel := r.opCtx()
	defer cancel()
	tag, err := r.pool.Exec(ctx, "DELETE FROM video_shares WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete video share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("share %s not found", id)
	}
	return nil
}

func (r *postgresRepository) HasVideoShareForEmail(videoID, email string) bool {
	ctx, cancel := r.opCtx()
	defer cancel()
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM video_shares WHERE video_id = $1 AND lower(shared_with_email) = lower($2))",
		videoID, email).Scan(&exists)
	return err == nil && exists
}

// --- share groups ---

func (r *postgresRepository) CreateShareGroup(ownerID, teamID, name string) (models.ShareGroup, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.ShareGroup{}, errors.New("group name is required")
	}
	id, err := generateID()
	if err != nil {
		return models.ShareGroup{}, err
	}
	group := models.ShareGroup{ID: id, OwnerID: ownerID, TeamID: teamID, Name: trimmed, CreatedAt: r.now()}
	ctx, cancel := r.opCtx()
	defer cancel()
	_, err = r.pool.Exec(ctx,
		"INSERT INTO share_groups (id, owner_id, team_id, name, created_at) VALUES ($1, $2, $3, $4, $5)",
		group.ID, group.OwnerID, nullable(group.TeamID), group.Name, group.CreatedAt)
	if isForeignKeyViolation(err) {
		return models.ShareGroup{}, errors.New("group owner or team not found")
	}
	if err != nil {
		return models.ShareGroup{}, fmt.Errorf("insert share group: %w", err)
	}
	return group, nil
}

const shareGroupColumns = "id, owner_id, COALESCE(team_id, ''), name, created_at"

func scanShareGroup(row pgx.Row) (models.ShareGroup, error) {
	var group models.ShareGroup
	err := row.Scan(&group.ID, &group.OwnerID, &group.TeamID, &group.Name, &group.CreatedAt)
	return group, err
}

func (r *postgresRepository) GetShareGroup(id string) (models.ShareGroup, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	group, err := scanShareGroup(r.pool.QueryRow(ctx,
		"SELECT "+shareGroupColumns+" FROM share_groups WHERE id = $1", id))
	if err != nil {
		return models.ShareGroup{}, false
	}
	return group, true
}

func (r *postgresRepository) ListShareGroups(ownerID string) []models.ShareGroup {
	ctx, cancel := r.opCtx()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		"SELECT "+shareGroupColumns+" FROM share_groups WHERE owner_id = $1 ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	groups := make([]models.ShareGroup, 0)
	for rows.Next() {
		group, err := scanShareGroup(rows)
		if err != nil {
			return nil
		}
		groups = append(groups, group)
	}
	return groups
}

func (r *postgresRepository) DeleteShareGroup(id string) error {
	// Members and video grants cascade via foreign keys.
	ctx, cancel := r.opCtx()
	defer cancel()
	tag, err := r.pool.Exec(ctx, "DELETE FROM share_groups WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete share group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("share group %s not found", id)
	}
	return nil
}

func (r *postgresRepository) AddShareGroupMember(groupID, email string) (models.ShareGroupMember, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" || !strings.Contains(trimmed, "@") {
		return models.ShareGroupMember{}, errors.New("a valid email is required")
	}
	member := models.ShareGroupMember{GroupID: groupID, Email: trimmed, CreatedAt: r.now()}
	ctx, cancel := r.opCtx()
	defer cancel()
	_, err := r.pool.Exec(ctx,
		"INSERT INTO share_group_members (group_id, email, created_at) VALUES ($1, $2, $3)",
		member.GroupID, member.Email, member.CreatedAt)
	if isUniqueViolation(err) {
		return models.ShareGroupMember{}, fmt.Errorf("%s is already a member", trimmed)
	}
	if isForeignKeyViolation(err) {
		return models.ShareGroupMember{}, fmt.Errorf("share group %s not found", groupID)
	}
	if err != nil {
		return models.ShareGroupMember{}, fmt.Errorf("insert group member: %w", err)
	}
	return member, nil
}

func (r *postgresRepository) RemoveShareGroupMember(groupID, email string) error {
	ctx, cancel := r.opCtx()
	defer cancel()
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM share_group_members WHERE group_id = $1 AND lower(email) = lower($2)", groupID, email)
	if err != nil {
		return fmt.Errorf("delete group member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s is not a member of group %s", email, groupID)
	}
	return nil
}

func (r *postgresRepository) ListShareGroupMembers(groupID string) []models.ShareGroupMember {
	ctx, cancel := r.opCtx()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		"SELECT group_id, email, created_at FROM share_group_members WHERE group_id = $1 ORDER BY created_at, email", groupID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	members := make([]models.ShareGroupMember, 0)
	for rows.Next() {
		var member models.ShareGroupMember
		if err := rows.Scan(&member.GroupID, &member.Email, &member.CreatedAt); err != nil {
			return nil
		}
		members = append(members, member)
	}
	return members
}

func (r *postgresRepository) CreateVideoGroupShare(videoID, groupID string) (models.VideoGroupShare, error) {
	grant := models.VideoGroupShare{VideoID: videoID, GroupID: groupID, CreatedAt: r.now()}
	ctx, cancel := r.opCtx()
	defer cancel()
	_, err := r.pool.Exec(ctx,
		"INSERT INTO video_group_shares (video_id, group_id, created_at) VALUES ($1, $2, $3)",
		grant.VideoID, grant.GroupID, grant.CreatedAt)
	if isUniqueViolation(err) {
		return models.VideoGroupShare{}, errors.New("video is already shared with this group")
	}
	if isForeignKeyViolation(err) {
		return models.VideoGroupShare{}, errors.New("video or share group not found")
	}
	if err != nil {
		return models.VideoGroupShare{}, fmt.Errorf("insert group share: %w", err)
	}
	return grant, nil
}

func (r *postgresRepository) DeleteVideoGroupShare(videoID, groupID string) error {
	ctx, cancel := r.opCtx()
	defer cancel()
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM video_group_shares WHERE video_id = $1 AND group_id = $2", videoID, groupID)
	if err != nil {
		return fmt.Errorf("delete group share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s is not shared with group %s", videoID, groupID)
	}
	return nil
}

func (r *postgresRepository) ListVideoGroupShares(videoID string) []models.VideoGroupShare {
	ctx, cancel := r.opCtx()
	defer cancel()
	rows, err := r.pool.Query(ctx,
		"SELECT video_id, group_id, created_at FROM video_group_shares WHERE video_id = $1 ORDER BY created_at, group_id", videoID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	grants := make([]models.VideoGroupShare, 0)
	for rows.Next() {
		var grant models.VideoGroupShare
		if err := rows.Scan(&grant.VideoID, &grant.GroupID, &grant.CreatedAt); err != nil {
			return nil
		}
		grants = append(grants, grant)
	}
	return grants
}

func (r *postgresRepository) HasGroupGrantForEmail(videoID, email, userID string) bool {
	ctx, cancel := r.opCtx()
	defer cancel()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM video_group_shares vgs
				JOIN share_groups g ON g.id = vgs.group_id
				LEFT JOIN share_group_members m ON m.group_id = g.id
			WHERE vgs.video_id = $1
				AND (($3 <> '' AND g.owner_id = $3) OR ($2 <> '' AND lower(m.email) = lower($2)))
		)`,
		videoID, email, userID).Scan(&exists)
	return err == nil && exists
}

var _ Repository = (*postgresRepository)(nil)
