package migrations

import "jobgrid/common/database/schema"

var CreateJobPostingTable = schema.Migration{
	Version:     1,
	Description: "Create jobposting table",
	Up: `
		CREATE TABLE IF NOT EXISTS jobposting (
			posting_id Int64,
			company_id Int64,
			platform_id Int64,
			title String,
			job_type String,
			location String,
			position String,
			experience_min Nullable(String),
			experience_max Nullable(String),
			education String,
			tech_stack String,
			is_data_job Bool,
			url Nullable(String),
			apply_end_date String,
			crawled_at DateTime
		) ENGINE = ReplacingMergeTree(crawled_at)
		PARTITION BY toYYYYMM(crawled_at)
		ORDER BY posting_id
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS jobposting`,
}

// All lists every migration in version order.
var All = []schema.Migration{
	CreateJobPostingTable,
}
