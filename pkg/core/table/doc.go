// Package table turns the fixed-width tables of plain-text 13F filings into rows.
//
// Old EDGAR submissions render the information table as preformatted text wrapped in
// <TABLE>...</TABLE> tags. A header line carries one marker per column: <S> for a
// string column and <C> for a numeric one. The marker offsets are the only reliable
// description of the layout, so column widths are inferred per block instead of
// being fixed by a schema:
//
//	<TABLE>
//	<CAPTION>
//	NAME OF ISSUER     TITLE OF CLASS   CUSIP        VALUE      SHARES
//	<S>                <C>              <C>          <C>        <C>        <C>
//	AMERICAN EXPRESS   COM              025816 10 9  1,952,944  151,610,700 ...
//	</TABLE>
//
// The pipeline is Segmenter (find blocks) -> InferWidths (layout) -> Extractor
// (rows, continuation repair, filtering).
package table
