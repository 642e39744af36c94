package tracker

// Node labels and relationship types of the tracking subgraph.
const (
	LabelCodebase  = "Codebase"
	LabelIngestion = "Ingestion"

	RelHasIngestion = "HAS_INGESTION"
	RelSupersededBy = "SUPERSEDED_BY"
)

// RecordIngestionQuery is the single atomic statement behind every tracking
// call. It merges the Codebase node (identity fields are write-once), finds
// the current chain head, creates the new Ingestion with the next counter,
// and links the chain. A null previous_ingestion_id in the result means the
// codebase was new.
//
// Correctness under concurrency is delegated to the store: the uniqueness
// constraint on Codebase.unique_key plus transaction isolation mean two
// same-key writers either serialize or one fails. Failures are not retried.
const RecordIngestionQuery = `
MERGE (cb:Codebase {unique_key: $unique_key})
ON CREATE SET cb.remote_url = $remote_url,
              cb.branch     = $branch,
              cb.created_at = $timestamp
WITH cb
OPTIONAL MATCH (cb)-[:HAS_INGESTION]->(prev:Ingestion)
WHERE NOT (prev)-[:SUPERSEDED_BY]->()
WITH cb, prev
ORDER BY prev.ingestion_counter DESC
LIMIT 1
CREATE (ing:Ingestion {
    ingestion_id:      $ingestion_id,
    ingestion_counter: coalesce(prev.ingestion_counter, 0) + 1,
    timestamp:         $timestamp,
    commit_sha:        $commit_sha,
    metadata:          $metadata
})
CREATE (cb)-[:HAS_INGESTION]->(ing)
FOREACH (p IN CASE WHEN prev IS NULL THEN [] ELSE [prev] END |
    CREATE (p)-[:SUPERSEDED_BY]->(ing))
RETURN ing.ingestion_id      AS ingestion_id,
       ing.ingestion_counter AS ingestion_counter,
       prev.ingestion_id     AS previous_ingestion_id`

// IngestionHistoryQuery returns every run of a codebase ascending by
// counter. Timestamps are advisory; the counter is the order.
const IngestionHistoryQuery = `
MATCH (cb:Codebase {unique_key: $unique_key})-[:HAS_INGESTION]->(ing:Ingestion)
RETURN ing.ingestion_id      AS ingestion_id,
       ing.ingestion_counter AS ingestion_counter,
       ing.timestamp         AS timestamp,
       ing.commit_sha        AS commit_sha,
       ing.metadata          AS metadata
ORDER BY ing.ingestion_counter ASC`

// CodebaseInfoQuery summarizes a codebase with its run count and the
// commit recorded by the chain head.
const CodebaseInfoQuery = `
MATCH (cb:Codebase {unique_key: $unique_key})
OPTIONAL MATCH (cb)-[:HAS_INGESTION]->(ing:Ingestion)
WITH cb, count(ing) AS ingestion_count, max(ing.ingestion_counter) AS head_counter
OPTIONAL MATCH (cb)-[:HAS_INGESTION]->(head:Ingestion {ingestion_counter: head_counter})
RETURN cb.unique_key   AS unique_key,
       cb.remote_url   AS remote_url,
       cb.branch       AS branch,
       ingestion_count AS ingestion_count,
       head.commit_sha AS commit_sha`

// Schema bootstrap statements. IF NOT EXISTS makes each one idempotent;
// isSchemaExists additionally tolerates servers that predate the clause.
const (
	CreateCodebaseKeyConstraintQuery = `
CREATE CONSTRAINT codebase_unique_key IF NOT EXISTS
FOR (cb:Codebase) REQUIRE cb.unique_key IS UNIQUE`

	CreateIngestionIDConstraintQuery = `
CREATE CONSTRAINT ingestion_id_unique IF NOT EXISTS
FOR (ing:Ingestion) REQUIRE ing.ingestion_id IS UNIQUE`

	CreateIngestionCounterIndexQuery = `
CREATE INDEX ingestion_counter_index IF NOT EXISTS
FOR (ing:Ingestion) ON (ing.ingestion_counter)`
)

// Schema introspection statements for Verify and Status.
const (
	ShowConstraintsQuery = `SHOW CONSTRAINTS YIELD name RETURN name`
	ShowIndexesQuery     = `SHOW INDEXES YIELD name RETURN name`
)
