// Package secrets redacts credentials from source chunks before they are
// embedded and written to the vector store.
//
// Two engines are available: "rules", a small set of regexp rules tuned for
// source code, and "gitleaks", which runs the full gitleaks default rule set.
// Both honor a gitleaks-style allowlist (path and content regexes) loaded from
// the project's .gitleaks.toml and an optional user TOML file.
package secrets
