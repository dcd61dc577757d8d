// Package tools implements the functions the voice model may call during a
// call: knowledge lookup, appointment listing and booking, and outbound SMS.
//
//   - Reference data is built once at startup and shared read-only.
//   - Dispatch always yields exactly one result per request, including on
//     handler failure, panic, or timeout.
//   - GenerateSchema[T]() derives a tool's parameter schema from its input struct.
package tools
