package sqlite

const schemaSQL = `
-- Collected answers.
-- source_url is the collection-phase key; the remaining columns are filled
-- once by the processing phase. A row is complete when title_text and
-- body_text are both non-empty.
CREATE TABLE IF NOT EXISTS answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_url TEXT UNIQUE NOT NULL,
	detail_url TEXT,
	title_text TEXT,
	body_text TEXT,
	revision_url TEXT,
	raw_timestamp TEXT,
	parsed_timestamp TEXT
);

CREATE INDEX IF NOT EXISTS idx_answers_source_url ON answers(source_url);
`
