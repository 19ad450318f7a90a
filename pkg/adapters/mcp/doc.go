// Package mcp exposes trip planning and the flight search tool over the Model
// Context Protocol, on stdio or SSE.
package mcp
