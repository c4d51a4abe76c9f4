package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/any-hub/asset-hub/internal/store"
)

type migration struct {
	version int
	name    string
	upSQL   string
}

// loadMigrations 读取 NNNN_name.sql，按版本号排序并校验连续性。
func loadMigrations(migrationFS fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var result []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: missing version prefix", entry.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: invalid version prefix: %w", entry.Name(), err)
		}
		content, err := fs.ReadFile(migrationFS, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		result = append(result, migration{
			version: version,
			name:    entry.Name(),
			upSQL:   extractUpMigration(string(content)),
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].version < result[j].version })
	for i, m := range result {
		if m.version != i+1 {
			return nil, fmt.Errorf("migration %s: expected version %d", m.name, i+1)
		}
	}
	return result, nil
}

// applyMigrations 把数据库推进到 target 版本，版本号记录在 PRAGMA user_version。
// 每个迁移在独立事务内执行，只追加结构，已有记录不会丢失。
func applyMigrations(ctx context.Context, db *sql.DB, migrations []migration, target int) (int, error) {
	current, err := userVersion(ctx, db)
	if err != nil {
		return 0, err
	}
	if current > target {
		return current, fmt.Errorf("%w: on-disk v%d, supported v%d", store.ErrSchemaTooNew, current, target)
	}

	for _, m := range migrations {
		if m.version <= current || m.version > target {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return current, fmt.Errorf("begin migration %s: %w", m.name, err)
		}
		if strings.TrimSpace(m.upSQL) != "" {
			if _, err := tx.ExecContext(ctx, m.upSQL); err != nil && !isAlreadyExistsError(err) {
				_ = tx.Rollback()
				return current, fmt.Errorf("exec migration %s: %w", m.name, err)
			}
		}
		// PRAGMA 不支持参数绑定，版本号来自文件名整数，直接拼接是安全的。
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return current, fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return current, fmt.Errorf("commit migration %s: %w", m.name, err)
		}
		current = m.version
	}
	return current, nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// extractUpMigration 返回 -- +migrate Up 段落内的 SQL。
func extractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

func isAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}
