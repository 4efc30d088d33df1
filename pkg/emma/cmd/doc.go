// Package cmd implements the emma command tree.
package cmd
