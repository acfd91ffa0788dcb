// Package loader reads prevalence CSV files into validated age series.
//
// Two layouts are supported:
//   - short form: age,prevalence — one series per file, labeled by the
//     caller
//   - long form: age,sex,group,prevalence — several series per file,
//     labeled row by row
//
// Values may be percentages (divided by 100 on load, so the estimators only
// ever see proportions) and files may be ISO-8859-1 encoded, which is how
// statistical agencies commonly publish survey extracts. Rows starting with
// '#' are comments; a non-numeric first row is treated as a header.
package loader
