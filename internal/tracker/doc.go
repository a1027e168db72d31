// Package tracker ties the log, merge, projection and index together into
// the three operations a user interface needs: view, append and reload.
package tracker
