// Package mcp implements the Model Context Protocol (MCP) server for tripdesk.
//
// The server exposes the trip engine to an LLM tool-calling layer:
//   - resolve_trip: Find the trip a free-text reference points at
//   - generate_slug: Derive a slug from client, destination and year (pure)
//   - assign_client / unassign_client: Dual-write client assignments
//   - reconcile_trip: Audit and repair assignment divergence
//   - mark_dirty / recompute_facts: Drive the fact cache
//   - create_trip / update_trip / get_trip: Trip records
//   - rebuild_index / get_status: Maintenance
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started via the serve command:
//
//	tripdesk serve
//
// It then listens on stdin for MCP protocol messages and writes responses to stdout.
//
// # Tool: resolve_trip
//
//	Request:
//	{
//	  "name": "resolve_trip",
//	  "arguments": {"query": "Sara Darren Jones Bristol Bath", "include_facts": true}
//	}
//
//	Response:
//	{
//	  "trip_id": 42,
//	  "name": "Sara & Darren Jones 25th Anniversary - Bristol & Bath",
//	  "confidence": 1,
//	  "method": "weighted",
//	  "explanation": ["slug: no trip with slug sara-darren-jones-bristol-bath", "weighted: ..."],
//	  "candidates": [...],
//	  "facts": {"nights": 4, "hotel_count": 2, ...}
//	}
//
// When every stage is exhausted the call still succeeds, with suggestions
// from the furthest stage and at least one alternative:
//
//	{
//	  "no_match": true,
//	  "query": "zzqx",
//	  "cause": "no trip matches \"zzqx\"; try: ...",
//	  "suggestions": [],
//	  "alternatives": ["search by the client's email address", ...]
//	}
//
// # Tool: assign_client
//
//	Request:  {"trip_id": 42, "client_email": "darren@example.com", "role": "traveler"}
//	Response: {"trip_id": 42, "consistent": true, "assignment": {...}}
//
// consistent is false, with a warning, when the embedded client list could
// not be rewritten; the assignment row is stored regardless and
// reconcile_trip with repair=true fixes the embedded copy.
//
// # Tool: mark_dirty / recompute_facts
//
//	mark_dirty      {"trip_ids": [42], "reason": "schedule_changed"} → {"marked": 1}
//	recompute_facts {"limit": 25} → {"processed": 1, "remaining": 0, "partial": false, ...}
//
// A recompute that runs out of its time budget returns the partial result
// with a warning rather than an error.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "tripdesk": {
//	      "command": "/usr/local/bin/tripdesk",
//	      "args": ["serve"],
//	      "env": {
//	        "TRIPDESK_DB_PATH": "/var/lib/tripdesk/tripdesk.db"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Failures are returned as JSON-RPC errors whose data names the cause and
// an alternative:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "assignment failed",
//	    "data": {
//	      "param": "client_email",
//	      "reason": "\"nope\" is not a valid email address",
//	      "alternatives": ["correct client_email and retry"]
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database)
//   - -32001: Trip not found
//   - -32002: Rebuild in progress
//   - -32004: Empty query
//
// # Logging
//
// Handlers log through zap to stderr (stdout is reserved for the MCP
// protocol). Every call is tagged with a request_id.
package mcp
