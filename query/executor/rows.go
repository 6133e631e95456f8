package executor

import (
	"database/sql"
	"fmt"

	"github.com/expreql/expreql/query/mapper"
)

// decodeRows scans every row into a mapper.Row. Column names repeated by
// joined tables become collided values in column order.
func decodeRows(rows *sql.Rows) ([]mapper.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	out := []mapper.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		for i, v := range values {
			// Text columns arrive as []byte
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		row, err := mapper.RowFromColumns(columns, values)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}
