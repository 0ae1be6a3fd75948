// Package ui provides theme and color support for the tool's terminal output.
// It defines color schemes and ANSI escape codes shared by the report
// renderer and the live dashboard, reducing coupling between monitoring
// logic and presentation.
package ui
