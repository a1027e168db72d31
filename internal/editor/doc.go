// Package editor runs the user's text editor on a temporary file.
package editor
