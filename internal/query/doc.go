// Package query turns materialized issues into filtered, sorted table views.
package query
