package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — таблицы контрольных точек истории графа.
const schema = `
CREATE TABLE IF NOT EXISTS graph_histories (
	document_id   uuid PRIMARY KEY,
	current_index integer NOT NULL,
	saved_index   integer NOT NULL,
	num_states    integer NOT NULL,
	checkpoint_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_states (
	document_id uuid NOT NULL REFERENCES graph_histories (document_id) ON DELETE CASCADE,
	idx         integer NOT NULL,
	icon_name   text NOT NULL,
	description text NOT NULL,
	dump        bytea,
	extra       jsonb,
	created_at  timestamptz NOT NULL,
	PRIMARY KEY (document_id, idx)
);
`

// EnsureSchema создаёт таблицы, если их ещё нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
