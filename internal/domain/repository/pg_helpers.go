package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds an ILIKE substring pattern with wildcards escaped.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func orderDirection(order string) string {
	if order == model.SortAsc {
		return "ASC"
	}
	return "DESC"
}

// appendLimit adds LIMIT/OFFSET when limit is positive.
func appendLimit(query string, args []interface{}, argID, page, limit int) (string, []interface{}) {
	if limit <= 0 {
		return query, args
	}
	if page < 1 {
		page = 1
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
	return query, append(args, limit, (page-1)*limit)
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// priorityRank mirrors ProjectPriority.Rank and TaskPriority.Rank in SQL.
const priorityRank = `CASE priority
	WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2
	WHEN 'critical' THEN 3 WHEN 'urgent' THEN 3 ELSE -1 END`
