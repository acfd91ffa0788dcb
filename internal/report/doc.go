// Package report renders fit results for people and for tools.
//
// Three formats are provided: plain text for the terminal (SimpleWriter),
// JSON for programmatic consumption (JSONWriter), and Markdown for
// documentation and sharing (MarkdownWriter). All writers implement the
// same Writer interface, and MultiWriter fans a single report out to
// several destinations at once.
package report
