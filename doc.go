// Package formtap extracts Typeform data as a Singer tap.
//
// A sync lists every form, fetches each definition, and pages through the
// responses of every form since its last checkpoint. Output is the Singer
// message stream: SCHEMA before the first RECORD of a stream, RECORD per
// row, and STATE after every page of responses.
//
// # Architecture
//
// Every upstream call goes through one request gate (pkg/clients.Gate) that
// spaces calls by a minimum interval and retries throttling responses. Soft
// throttling (429, 502, 503) backs off exponentially, metering locks (423)
// wait on a constant interval, and every other failure is fatal.
//
// The typeform source (pkg/connector/sources/typeform) layers on the gate:
//
//	Discovery  - lazy iterator over the paged form listing
//	Pager      - responses pages, by date window or by continuation token
//	Shaper     - landings, answers, questions and forms rows
//	Syncer     - per-form orchestration and checkpointing
//
// Checkpoints are kept by pkg/state. A bookmark holds the last submitted_at
// seen and the last response token; it is persisted to the configured store
// before the STATE message is written, and it never moves backwards.
//
// # Quick Start
//
//	formtap discover > catalog.json
//	formtap sync --config tap.yaml --catalog catalog.json --state state.json
//
// A minimal configuration:
//
//	token: ${TYPEFORM_TOKEN}
//	start_date: "2024-01-01T00:00:00Z"
//	sink:
//	  type: singer
//	state:
//	  type: file
//	  options:
//	    path: state.json
//
// # Key Packages
//
//	pkg/clients       - HTTP client and rate-limited request gate
//	pkg/catalog       - Singer catalog, embedded schemas and selection
//	pkg/state         - checkpoint manager and state stores
//	pkg/transform     - schema-driven record transform
//	pkg/connector     - sink and store registry, Singer, JSONL and Kafka sinks
//	pkg/config        - YAML/JSON configuration with env and flag overrides
//	pkg/logger        - zap logging to stderr
//	pkg/metrics       - prometheus collectors and textfile export
//	pkg/observability - OpenTelemetry tracing
package formtap
