package postgres

// SQL for the items counter table.

const (
	// queryUpsertViews merges one page of view counts. unnest turns the two
	// parallel arrays into rows so the whole page is one statement.
	// Only the views column is touched on conflict; downloads keeps its value.
	queryUpsertViews = `
		INSERT INTO items (id, views)
		SELECT * FROM unnest($1::uuid[], $2::integer[])
		ON CONFLICT (id) DO UPDATE SET views = EXCLUDED.views
	`

	// queryUpsertDownloads is the downloads twin of queryUpsertViews.
	queryUpsertDownloads = `
		INSERT INTO items (id, downloads)
		SELECT * FROM unnest($1::uuid[], $2::integer[])
		ON CONFLICT (id) DO UPDATE SET downloads = EXCLUDED.downloads
	`

	queryGetItem = `SELECT id, views, downloads FROM items WHERE id = $1`

	queryCountItems = `SELECT COUNT(*) FROM items`

	queryItemsTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'items'
		)
	`
)
