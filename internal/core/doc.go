// Package core infers a schema for an arbitrary CSV and cleans its rows.
//
// The package holds no I/O beyond reading the input file and is independent
// of any transport or store. The web server, the CLI and the scheduler all
// drive it through the pipeline package.
//
// # Flow
//
//  1. [Extract] reads a file, resolves its encoding and parses a [RawTable]
//  2. [Engine.Transform] classifies each column as numeric, date or text
//  3. Every cell is normalized for its column type ([Normalize])
//  4. [AdmissionPolicy.Admit] splits rows into valid and rejected sets
//
// Per-cell problems never fail a transform: unparsable numbers and dates
// become nil, and rows with too many missing cells are rejected with a
// reason. Only structural problems are errors ([NotFoundError],
// [DecodeError], [SchemaError]).
//
// # Classification
//
// A column is sampled (first 100 non-blank values, in order). It is numeric
// when more than 70% of the sample cleans to a number, otherwise date when
// more than 70% parses as a date, otherwise text:
//
//	core.Classify([]string{"100", "200.5", "$300"}) // numeric
//	core.Classify([]string{"2025-01-01", "Jan 3, 2025"}) // date
//
// # Events
//
// [NewEngine] accepts an [EventFunc] that receives one event per classified
// column and one summary event. Events are advisory; the pipeline forwards
// them to the live log.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: File errors (missing, format, encoding, size)
//   - SCH001: Schema errors
//   - RUN001-RUN005: Run errors (busy, not found, auto-detect, cancel, timeout)
//   - DB001-DB005: Database errors
package core
