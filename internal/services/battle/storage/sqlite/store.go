// Package sqlite provides a SQLite-backed battle storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/agorahq/arena/internal/platform/storage/sqlitemigrate"
	"github.com/agorahq/arena/internal/services/battle/domain"
	"github.com/agorahq/arena/internal/services/battle/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists battle state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite battle store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const battleColumns = `id, topic_id, challenger_id, challenged_id,
        challenger_side, challenged_side,
        challenger_opinion_id, challenged_opinion_id,
        status, duration_seconds, challenger_hp, challenged_hp,
        current_turn_user_id, turn_started_at, awaiting_user_id,
        winner_id, end_reason, ended_at,
        version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBattle(row rowScanner) (domain.Battle, error) {
	var battle domain.Battle
	var side, opposingSide, status, endReason string
	var turnStartedAt, endedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(
		&battle.ID,
		&battle.TopicID,
		&battle.ChallengerID,
		&battle.ChallengedID,
		&side,
		&opposingSide,
		&battle.ChallengerOpinionID,
		&battle.ChallengedOpinionID,
		&status,
		&battle.DurationSeconds,
		&battle.ChallengerHP,
		&battle.ChallengedHP,
		&battle.CurrentTurnUserID,
		&turnStartedAt,
		&battle.AwaitingUserID,
		&battle.WinnerID,
		&endReason,
		&endedAt,
		&battle.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Battle{}, err
	}
	battle.ChallengerSide = domain.Side(side)
	battle.ChallengedSide = domain.Side(opposingSide)
	battle.Status = domain.Status(status)
	battle.EndReason = domain.EndReason(endReason)
	if turnStartedAt.Valid {
		started := fromMillis(turnStartedAt.Int64)
		battle.TurnStartedAt = &started
	}
	if endedAt.Valid {
		ended := fromMillis(endedAt.Int64)
		battle.EndedAt = &ended
	}
	battle.CreatedAt = fromMillis(createdAt)
	battle.UpdatedAt = fromMillis(updatedAt)
	return battle, nil
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

// CreateBattle inserts one battle and its opening transcript entries. A
// second unresolved battle for the same participant pair and topic violates
// the open-pair index and reports domain.ErrConflict.
func (s *Store) CreateBattle(ctx context.Context, battle domain.Battle, messages []domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(battle.ID) == "" {
		return fmt.Errorf("battle id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create battle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO battles (`+battleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		battle.ID,
		battle.TopicID,
		battle.ChallengerID,
		battle.ChallengedID,
		string(battle.ChallengerSide),
		string(battle.ChallengedSide),
		battle.ChallengerOpinionID,
		battle.ChallengedOpinionID,
		string(battle.Status),
		battle.DurationSeconds,
		battle.ChallengerHP,
		battle.ChallengedHP,
		battle.CurrentTurnUserID,
		nullMillis(battle.TurnStartedAt),
		battle.AwaitingUserID,
		battle.WinnerID,
		string(battle.EndReason),
		nullMillis(battle.EndedAt),
		battle.Version,
		toMillis(battle.CreatedAt),
		toMillis(battle.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("create battle: %w", err)
	}

	if err := insertMessages(ctx, tx, messages); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create battle: %w", err)
	}
	return nil
}

// GetBattle returns one battle by ID.
func (s *Store) GetBattle(ctx context.Context, battleID string) (domain.Battle, error) {
	if err := ctx.Err(); err != nil {
		return domain.Battle{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Battle{}, fmt.Errorf("storage is not configured")
	}
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return domain.Battle{}, fmt.Errorf("battle id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+battleColumns+` FROM battles WHERE id = ?`,
		battleID,
	)
	battle, err := scanBattle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Battle{}, domain.ErrNotFound
		}
		return domain.Battle{}, fmt.Errorf("get battle: %w", err)
	}
	return battle, nil
}

// UpdateBattle commits one optimistic state transition together with its
// transcript appends. The row is replaced only while its stored version still
// matches expectedVersion; a stale expectation reports
// domain.ErrVersionMismatch and writes nothing.
func (s *Store) UpdateBattle(ctx context.Context, battle domain.Battle, expectedVersion int64, messages []domain.Message) (domain.Battle, error) {
	if err := ctx.Err(); err != nil {
		return domain.Battle{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Battle{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("begin update battle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE battles SET
		    status = ?,
		    duration_seconds = ?,
		    challenger_hp = ?,
		    challenged_hp = ?,
		    current_turn_user_id = ?,
		    turn_started_at = ?,
		    awaiting_user_id = ?,
		    winner_id = ?,
		    end_reason = ?,
		    ended_at = ?,
		    version = version + 1,
		    updated_at = ?
		  WHERE id = ? AND version = ?`,
		string(battle.Status),
		battle.DurationSeconds,
		battle.ChallengerHP,
		battle.ChallengedHP,
		battle.CurrentTurnUserID,
		nullMillis(battle.TurnStartedAt),
		battle.AwaitingUserID,
		battle.WinnerID,
		string(battle.EndReason),
		nullMillis(battle.EndedAt),
		toMillis(battle.UpdatedAt),
		battle.ID,
		expectedVersion,
	)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("update battle: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Battle{}, fmt.Errorf("update battle rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		row := tx.QueryRowContext(ctx, `SELECT 1 FROM battles WHERE id = ?`, battle.ID)
		if scanErr := row.Scan(&exists); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return domain.Battle{}, domain.ErrNotFound
			}
			return domain.Battle{}, fmt.Errorf("update battle existence check: %w", scanErr)
		}
		return domain.Battle{}, domain.ErrVersionMismatch
	}

	if err := insertMessages(ctx, tx, messages); err != nil {
		return domain.Battle{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Battle{}, fmt.Errorf("commit update battle: %w", err)
	}

	battle.Version = expectedVersion + 1
	return battle, nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, messages []domain.Message) error {
	for _, msg := range messages {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO battle_messages (
			   id, battle_id, role, user_id, content,
			   hp_change, target_user_id, created_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID,
			msg.BattleID,
			string(msg.Role),
			msg.UserID,
			msg.Content,
			msg.HPChange,
			msg.TargetUserID,
			toMillis(msg.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert battle message: %w", err)
		}
	}
	return nil
}

// ListBattles returns one page of battles, newest first.
func (s *Store) ListBattles(ctx context.Context, filter domain.ListBattlesFilter) (domain.BattlePage, error) {
	if err := ctx.Err(); err != nil {
		return domain.BattlePage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.BattlePage{}, fmt.Errorf("storage is not configured")
	}
	if filter.PageSize <= 0 {
		return domain.BattlePage{}, fmt.Errorf("page size must be greater than zero")
	}

	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.TopicID != "" {
		conditions = append(conditions, "topic_id = ?")
		args = append(args, filter.TopicID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "(challenger_id = ? OR challenged_id = ?)")
		args = append(args, filter.UserID, filter.UserID)
	}
	if token := strings.TrimSpace(filter.PageToken); token != "" {
		anchorCreatedAt, err := s.battleCreatedAt(ctx, token)
		if err != nil {
			return domain.BattlePage{}, err
		}
		conditions = append(conditions, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, anchorCreatedAt, anchorCreatedAt, token)
	}

	query := `SELECT ` + battleColumns + ` FROM battles`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, filter.PageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.BattlePage{}, fmt.Errorf("list battles: %w", err)
	}
	defer rows.Close()

	page := domain.BattlePage{Battles: make([]domain.Battle, 0, filter.PageSize)}
	for rows.Next() {
		battle, err := scanBattle(rows)
		if err != nil {
			return domain.BattlePage{}, fmt.Errorf("list battles: %w", err)
		}
		page.Battles = append(page.Battles, battle)
	}
	if err := rows.Err(); err != nil {
		return domain.BattlePage{}, fmt.Errorf("list battles: %w", err)
	}
	if len(page.Battles) > filter.PageSize {
		page.NextPageToken = page.Battles[filter.PageSize-1].ID
		page.Battles = page.Battles[:filter.PageSize]
	}
	return page, nil
}

func (s *Store) battleCreatedAt(ctx context.Context, battleID string) (int64, error) {
	var createdAt int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT created_at FROM battles WHERE id = ?`, battleID)
	if err := row.Scan(&createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("invalid page token")
		}
		return 0, fmt.Errorf("resolve page token: %w", err)
	}
	return createdAt, nil
}

// ActiveBattleForUser returns the user's single ACTIVE battle.
func (s *Store) ActiveBattleForUser(ctx context.Context, userID string) (domain.Battle, error) {
	if err := ctx.Err(); err != nil {
		return domain.Battle{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Battle{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Battle{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+battleColumns+`
		   FROM battles
		  WHERE status = ? AND (challenger_id = ? OR challenged_id = ?)
		  ORDER BY created_at DESC
		  LIMIT 1`,
		string(domain.StatusActive),
		userID,
		userID,
	)
	battle, err := scanBattle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Battle{}, domain.ErrNotFound
		}
		return domain.Battle{}, fmt.Errorf("active battle for user: %w", err)
	}
	return battle, nil
}

// ListStaleChallenges returns unanswered challenges created at or before the
// cutoff, oldest first.
func (s *Store) ListStaleChallenges(ctx context.Context, cutoff time.Time, limit int) ([]domain.Battle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+battleColumns+`
		   FROM battles
		  WHERE status IN (?, ?) AND created_at <= ?
		  ORDER BY created_at ASC
		  LIMIT ?`,
		string(domain.StatusPending),
		string(domain.StatusNegotiating),
		toMillis(cutoff),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale challenges: %w", err)
	}
	defer rows.Close()

	return collectBattles(rows, "list stale challenges")
}

// ListOverdueActiveBattles returns ACTIVE battles whose turn holder's clock
// has fully run down as of the given instant, oldest turn first. The deadline
// is computed per side because only the holder's pool drains.
func (s *Store) ListOverdueActiveBattles(ctx context.Context, now time.Time, limit int) ([]domain.Battle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	nowMillis := toMillis(now)
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+battleColumns+`
		   FROM battles
		  WHERE status = ?
		    AND turn_started_at IS NOT NULL
		    AND (
		      (current_turn_user_id = challenger_id AND turn_started_at + challenger_hp * 1000 <= ?)
		      OR
		      (current_turn_user_id = challenged_id AND turn_started_at + challenged_hp * 1000 <= ?)
		    )
		  ORDER BY turn_started_at ASC
		  LIMIT ?`,
		string(domain.StatusActive),
		nowMillis,
		nowMillis,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list overdue battles: %w", err)
	}
	defer rows.Close()

	return collectBattles(rows, "list overdue battles")
}

func collectBattles(rows *sql.Rows, op string) ([]domain.Battle, error) {
	var battles []domain.Battle
	for rows.Next() {
		battle, err := scanBattle(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		battles = append(battles, battle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return battles, nil
}

// ListMessages returns one transcript page, oldest first.
func (s *Store) ListMessages(ctx context.Context, battleID string, pageSize int, pageToken string) (domain.MessagePage, error) {
	if err := ctx.Err(); err != nil {
		return domain.MessagePage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.MessagePage{}, fmt.Errorf("storage is not configured")
	}
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return domain.MessagePage{}, fmt.Errorf("battle id is required")
	}
	if pageSize <= 0 {
		return domain.MessagePage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, battle_id, role, user_id, content, hp_change, target_user_id, created_at
			   FROM battle_messages
			  WHERE battle_id = ?
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?`,
			battleID,
			pageSize+1,
		)
	} else {
		var anchorCreatedAt int64
		row := s.sqlDB.QueryRowContext(ctx,
			`SELECT created_at FROM battle_messages WHERE id = ?`, pageToken)
		if scanErr := row.Scan(&anchorCreatedAt); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return domain.MessagePage{}, fmt.Errorf("invalid page token")
			}
			return domain.MessagePage{}, fmt.Errorf("resolve page token: %w", scanErr)
		}
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, battle_id, role, user_id, content, hp_change, target_user_id, created_at
			   FROM battle_messages
			  WHERE battle_id = ?
			    AND (created_at > ? OR (created_at = ? AND id > ?))
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?`,
			battleID,
			anchorCreatedAt,
			anchorCreatedAt,
			pageToken,
			pageSize+1,
		)
	}
	if err != nil {
		return domain.MessagePage{}, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	page := domain.MessagePage{Messages: make([]domain.Message, 0, pageSize)}
	for rows.Next() {
		var msg domain.Message
		var role string
		var createdAt int64
		if err := rows.Scan(
			&msg.ID,
			&msg.BattleID,
			&role,
			&msg.UserID,
			&msg.Content,
			&msg.HPChange,
			&msg.TargetUserID,
			&createdAt,
		); err != nil {
			return domain.MessagePage{}, fmt.Errorf("list messages: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.CreatedAt = fromMillis(createdAt)
		page.Messages = append(page.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return domain.MessagePage{}, fmt.Errorf("list messages: %w", err)
	}
	if len(page.Messages) > pageSize {
		page.NextPageToken = page.Messages[pageSize-1].ID
		page.Messages = page.Messages[:pageSize]
	}
	return page, nil
}

// AppendComment inserts one observer comment.
func (s *Store) AppendComment(ctx context.Context, comment domain.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(comment.ID) == "" {
		return fmt.Errorf("comment id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO battle_comments (id, battle_id, user_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		comment.ID,
		comment.BattleID,
		comment.UserID,
		comment.Content,
		toMillis(comment.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append comment: %w", err)
	}
	return nil
}

// ListComments returns one comment page, oldest first.
func (s *Store) ListComments(ctx context.Context, battleID string, pageSize int, pageToken string) (domain.CommentPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.CommentPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.CommentPage{}, fmt.Errorf("storage is not configured")
	}
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return domain.CommentPage{}, fmt.Errorf("battle id is required")
	}
	if pageSize <= 0 {
		return domain.CommentPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, battle_id, user_id, content, created_at
			   FROM battle_comments
			  WHERE battle_id = ?
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?`,
			battleID,
			pageSize+1,
		)
	} else {
		var anchorCreatedAt int64
		row := s.sqlDB.QueryRowContext(ctx,
			`SELECT created_at FROM battle_comments WHERE id = ?`, pageToken)
		if scanErr := row.Scan(&anchorCreatedAt); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return domain.CommentPage{}, fmt.Errorf("invalid page token")
			}
			return domain.CommentPage{}, fmt.Errorf("resolve page token: %w", scanErr)
		}
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, battle_id, user_id, content, created_at
			   FROM battle_comments
			  WHERE battle_id = ?
			    AND (created_at > ? OR (created_at = ? AND id > ?))
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?`,
			battleID,
			anchorCreatedAt,
			anchorCreatedAt,
			pageToken,
			pageSize+1,
		)
	}
	if err != nil {
		return domain.CommentPage{}, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	page := domain.CommentPage{Comments: make([]domain.Comment, 0, pageSize)}
	for rows.Next() {
		var comment domain.Comment
		var createdAt int64
		if err := rows.Scan(
			&comment.ID,
			&comment.BattleID,
			&comment.UserID,
			&comment.Content,
			&createdAt,
		); err != nil {
			return domain.CommentPage{}, fmt.Errorf("list comments: %w", err)
		}
		comment.CreatedAt = fromMillis(createdAt)
		page.Comments = append(page.Comments, comment)
	}
	if err := rows.Err(); err != nil {
		return domain.CommentPage{}, fmt.Errorf("list comments: %w", err)
	}
	if len(page.Comments) > pageSize {
		page.NextPageToken = page.Comments[pageSize-1].ID
		page.Comments = page.Comments[:pageSize]
	}
	return page, nil
}

// DeleteBattle removes one battle with its transcript and comments.
func (s *Store) DeleteBattle(ctx context.Context, battleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return fmt.Errorf("battle id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete battle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM battle_messages WHERE battle_id = ?`, battleID); err != nil {
		return fmt.Errorf("delete battle messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM battle_comments WHERE battle_id = ?`, battleID); err != nil {
		return fmt.Errorf("delete battle comments: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM battles WHERE id = ?`, battleID)
	if err != nil {
		return fmt.Errorf("delete battle: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete battle rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ domain.Store = (*Store)(nil)
