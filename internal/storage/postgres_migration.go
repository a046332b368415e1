package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS team_memberships (
		team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (team_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS storage_credentials (
		id TEXT PRIMARY KEY,
		user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
		team_id TEXT REFERENCES teams(id) ON DELETE CASCADE,
		encrypted_access_key_id TEXT NOT NULL,
		encrypted_secret_access_key TEXT NOT NULL,
		bucket_name TEXT NOT NULL,
		region TEXT NOT NULL,
		transcode_role_arn TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK ((user_id IS NULL) <> (team_id IS NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS storage_credentials_user_idx ON storage_credentials (user_id) WHERE user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS storage_credentials_team_idx ON storage_credentials (team_id) WHERE team_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		team_id TEXT REFERENCES teams(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		original_key TEXT NOT NULL,
		hls_manifest_key TEXT NOT NULL DEFAULT '',
		transcoding_job_id TEXT NOT NULL DEFAULT '',
		transcoding_status TEXT NOT NULL,
		transcoding_error TEXT NOT NULL DEFAULT '',
		visibility TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS videos_owner_idx ON videos (owner_id)`,
	`CREATE INDEX IF NOT EXISTS videos_team_idx ON videos (team_id) WHERE team_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS video_shares (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		shared_with_email TEXT NOT NULL,
		shared_by_user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS video_shares_video_email_idx ON video_shares (video_id, lower(shared_with_email))`,
	`CREATE TABLE IF NOT EXISTS share_groups (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		team_id TEXT REFERENCES teams(id) ON DELETE SET NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS share_group_members (
		group_id TEXT NOT NULL REFERENCES share_groups(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS share_group_members_idx ON share_group_members (group_id, lower(email))`,
	`CREATE TABLE IF NOT EXISTS video_group_shares (
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		group_id TEXT NOT NULL REFERENCES share_groups(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (video_id, group_id)
	)`,
}

func (r *postgresRepository) ensureSchema(ctx context.Context) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin schema migration: %w", err)
	}
	defer rollbackTx(ctx, tx)
	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema migration: %w", err)
	}
	return nil
}

// ImportSnapshot copies the contents of an in-memory store into Postgres in a
// single transaction. Rows that already exist are left untouched, so a partial
// earlier import can be re-run safely.
func (r *postgresRepository) ImportSnapshot(ctx context.Context, src *Storage) error {
	src.mu.RLock()
	data := cloneDataset(src.data)
	src.mu.RUnlock()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin snapshot import: %w", err)
	}
	defer rollbackTx(ctx, tx)

	for _, id := range sortedKeys(data.Users) {
		user := data.Users[id]
		if _, err := tx.Exec(ctx,
			"INSERT INTO users (id, display_name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
			user.ID, user.DisplayName, user.Email, user.PasswordHash, user.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("import user %s: %w", id, err)
		}
	}
	for _, id := range sortedKeys(data.Teams) {
		team := data.Teams[id]
		if _, err := tx.Exec(ctx,
			"INSERT INTO teams (id, name, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING",
			team.ID, team.Name, team.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("import team %s: %w", id, err)
		}
	}
	for _, membership := range data.TeamMemberships {
		if _, err := tx.Exec(ctx,
			"INSERT INTO team_memberships (team_id, user_id, role, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING",
			membership.TeamID, membership.UserID, string(membership.Role), membership.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("import membership %s/%s: %w", membership.TeamID, membership.UserID, err)
		}
	}
	for _, id := range sortedKeys(data.StorageCredentials) {
		credential := data.StorageCredentials[id]
		if _, err := tx.Exec(ctx,
			`INSERT INTO storage_credentials (id, user_id, team_id, encrypted_access_key_id, encrypted_secret_access_key, bucket_name, region, transcode_role_arn, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (id) DO NOTHING`,
			credential.ID, nullable(credential.UserID), nullable(credential.TeamID),
			credential.EncryptedAccessKeyID, credential.EncryptedSecretAccessKey,
			credential.BucketName, credential.Region, credential.TranscodeRoleARN,
			credential.CreatedAt.UTC(), credential.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("import credential %s: %w", id, err)
		}
	}
	for _, id := range sortedKeys(data.Videos) {
		video := data.Videos[id]
		if _, err := tx.Exec(ctx,
			`INSERT INTO videos (id, owner_id, team_id, title, description, original_key, hls_manifest_key, transcoding_job_id, transcoding_status, transcoding_error, visibility, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) ON CONFLICT (id) DO NOTHING`,
			video.ID, video.OwnerID, nullable(video.TeamID), video.Title, video.Description,
			video.OriginalKey, video.HLSManifestKey, video.TranscodingJobID,
			string(video.TranscodingStatus), video.TranscodingError, string(video.Visibility),
			video.CreatedAt.UTC(), video.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("import video %s: %w", id, err)
		}
	}
	for _, id := range sortedKeys(data.VideoShares) {
		share := data.VideoShares[id]
		if _, err := tx.Exec(ctx,
			"INSERT INTO video_shares (id, video_id, shared_with_email, shared_by_user_id, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
			share.ID, share.VideoID, share.SharedWithEmail, share.SharedByUserID, share.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("import video share %s: %w", id, err)
		}
	}
	for _, id := range sortedKeys(data.ShareGroups) {
		group := data.ShareGroups[id]
		if _, err := tx.Exec(ctx,
			"INSERT INTO share_groups (id, owner_id, team_id, name, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
			group.ID, group.OwnerID, nullable(group.TeamID), group.Name, group.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("import share group %s: %w", id, err)
		}
	}
	for _, member := range data.ShareGroupMembers {
		if _, err := tx.Exec(ctx,
			"INSERT INTO share_group_members (group_id, email, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			member.GroupID, member.Email, member.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("import group member %s/%s: %w", member.GroupID, member.Email, err)
		}
	}
	for _, grant := range data.VideoGroupShares {
		if _, err := tx.Exec(ctx,
			"INSERT INTO video_group_shares (video_id, group_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			grant.VideoID, grant.GroupID, grant.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("import group share %s/%s: %w", grant.VideoID, grant.GroupID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot import: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
