// Package agent contains the building blocks for catalog agents.
//
// Every agent follows the same convention: a name, a description and a JSON
// Schema parameter object (together core.Metadata) plus a Perform method that
// receives the decoded arguments and returns a string result.
//
//  1. BaseAgent carries identity and schema. Embed it and add Perform.
//  2. FuncAgent adapts a plain function and validates its arguments first.
//  3. SchemaFor derives a parameter schema from an argument struct.
//
// Failures are normalized into *Error values with a stable Code so the host
// can tell bad input (VALIDATION_ERROR) from execution faults.
package agent
