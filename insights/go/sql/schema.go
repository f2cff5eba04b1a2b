// Package sql holds the database schema the SQL backed stores expect.
package sql

// Schema is the SQL schema of every table. It only uses IF NOT EXISTS
// statements, so applying it to an already provisioned database is a no-op.
const Schema = `
CREATE TABLE IF NOT EXISTS Surveys (
	survey_id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	team_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS SurveyItems (
	survey_item_id TEXT PRIMARY KEY,
	survey_id TEXT NOT NULL,
	type TEXT NOT NULL,
	INDEX by_survey (survey_id)
);

CREATE TABLE IF NOT EXISTS Responses (
	response_id TEXT PRIMARY KEY,
	survey_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	countable BOOL NOT NULL DEFAULT true,
	-- A types.Response serialized as JSON.
	body TEXT NOT NULL,
	INDEX by_survey_created_at (survey_id, created_at)
);

CREATE TABLE IF NOT EXISTS Statistics (
	survey_id TEXT NOT NULL,
	survey_item_id TEXT NOT NULL,
	time_bucket TIMESTAMPTZ NOT NULL,
	dims_key TEXT NOT NULL,
	-- A types.Dimensions serialized as JSON.
	dims TEXT NOT NULL,
	-- A tally.Tally serialized as JSON.
	tally TEXT NOT NULL,
	answered_count INT NOT NULL DEFAULT 0,
	skipped_count INT NOT NULL DEFAULT 0,
	skipped_by_flow_count INT NOT NULL DEFAULT 0,
	synced BOOL NOT NULL DEFAULT false,
	PRIMARY KEY (survey_item_id, time_bucket, dims_key),
	INDEX by_synced (synced, time_bucket)
);

CREATE TABLE IF NOT EXISTS AnomalyNotifications (
	notification_id TEXT PRIMARY KEY,
	survey_id TEXT NOT NULL,
	survey_item_id TEXT NOT NULL DEFAULT '',
	company_id TEXT NOT NULL,
	team_id TEXT NOT NULL,
	period TEXT NOT NULL,
	from_time TIMESTAMPTZ NOT NULL,
	to_time TIMESTAMPTZ NOT NULL,
	kind TEXT NOT NULL,
	selected TEXT NOT NULL DEFAULT '',
	coefficient FLOAT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	-- Backs the dedup guarantee: re-detection within the same window is
	-- a no-op.
	UNIQUE INDEX by_identity (survey_id, survey_item_id, kind, period, from_time),
	INDEX by_survey_created_at (survey_id, created_at DESC)
);

CREATE TABLE IF NOT EXISTS CorrelationNotifications (
	notification_id TEXT PRIMARY KEY,
	survey_id TEXT NOT NULL,
	company_id TEXT NOT NULL,
	team_id TEXT NOT NULL,
	period TEXT NOT NULL,
	from_time TIMESTAMPTZ NOT NULL,
	to_time TIMESTAMPTZ NOT NULL,
	left_item_id TEXT NOT NULL,
	right_item_id TEXT NOT NULL,
	correlation FLOAT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	INDEX by_pair (survey_id, left_item_id, right_item_id, created_at DESC),
	INDEX by_survey_created_at (survey_id, created_at DESC)
);
`
