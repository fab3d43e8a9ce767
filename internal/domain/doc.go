// Package domain models Environment and Climate Change Canada (ECCC) water
// quality monitoring data as it moves through ingestion and validation.
//
// # Data Source
//
// ECCC long-term water quality monitoring exports are long-format CSV files:
// one row per (station, sample time, variable) measurement. The exports are
// loosely specified; columns appear and disappear between vintages and the
// same logical field has carried different names.
//
// # Raw Columns
//
//	site_no          station identifier, e.g. "BC08NL0001"
//	sample_datetime  sample collection time, "2020-01-01 08:00" or ISO-8601
//	value            measured value, decimal text
//	variable         parameter name, e.g. "TURBIDITY", "PH (FIELD)"
//	unit             unit of measurement, e.g. "NTU", "MG/L", "DEG C"
//	qualifier_flag   "<" below detection, ">" above, "~" approximate,
//	                 "E" estimated, "U" uncensored
//	qa_status        "P" provisional, "V" validated, "R" rejected, "E" estimated
//	sample_id        sample identifier
//	sdl, mdl         sample / method detection limits (metadata only)
//	variable_code    numeric variable code (metadata only)
//	variable_fr      French variable name (metadata only)
//
// # Missing Values
//
// Exports written by spreadsheet and dataframe tooling use several spellings
// for "no value" ("", "NA", "NaN", "nan", "#N/A", ...). Those tokens are
// nulls, not parse failures. Any other text that does not parse as the
// column type is kept verbatim in [Cell.Raw] so validation can report it.
//
// # Row Identity
//
// A measurement is identified by (station_id, timestamp, parameter). Rows
// sharing that tuple are duplicates; the first occurrence in file order is
// canonical.
package domain
