// Package util holds small helpers shared by the agent and assistant
// packages: parameter validation and prompt templating.
package util
