package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var tripIDProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Numeric trip id (use resolve_trip to find it)",
	"minimum":     1,
}

var roleProperty = map[string]interface{}{
	"type":        "string",
	"description": "Client role on the trip",
	"enum":        []string{"primary_traveler", "traveler", "secondary_traveler"},
	"default":     "traveler",
}

var statusProperty = map[string]interface{}{
	"type":        "string",
	"description": "Trip status",
	"enum":        []string{"planning", "confirmed", "deposit_paid", "paid_in_full", "in_progress", "completed", "cancelled"},
}

var planProperty = map[string]interface{}{
	"type":        "object",
	"description": "Itinerary: financials {total_cost, deposit, currency}, schedule [{date, activities [{name, cost, transit_minutes}]}], accommodations [{name, nights, cost}]",
}

// resolveTripTool returns the tool definition for resolve_trip
func resolveTripTool() mcp.Tool {
	return mcp.Tool{
		Name:        "resolve_trip",
		Description: "Find the trip a free-text reference points at (slug, client name or email, destination, dates, or a paraphrase)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Slug, trip name, client, destination or description",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of alternative candidates to return (1-20)",
					"default":     5,
					"minimum":     1,
					"maximum":     20,
				},
				"include_facts": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, attach cached trip facts (nights, hotels, activities, cost, transit)",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// generateSlugTool returns the tool definition for generate_slug
func generateSlugTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_slug",
		Description: "Derive a slug from client, destination and year. Does not check uniqueness or store anything.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"client_name": map[string]interface{}{
					"type":        "string",
					"description": "Client display name; its first word is used",
				},
				"client_email": map[string]interface{}{
					"type":        "string",
					"description": "Client email; its local part is used when no name is given",
				},
				"primary_destination": map[string]interface{}{
					"type":        "string",
					"description": "Main destination of the trip",
				},
				"year": map[string]interface{}{
					"type":        "integer",
					"description": "Trip start year",
				},
			},
		},
	}
}

// assignClientTool returns the tool definition for assign_client
func assignClientTool() mcp.Tool {
	return mcp.Tool{
		Name:        "assign_client",
		Description: "Assign a client to a trip, keeping the assignment table and the trip document in agreement",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"trip_id": tripIDProperty,
				"client_email": map[string]interface{}{
					"type":        "string",
					"description": "Client email address",
				},
				"role": roleProperty,
				"client_name": map[string]interface{}{
					"type":        "string",
					"description": "Optional display name",
				},
			},
			Required: []string{"trip_id", "client_email"},
		},
	}
}

// unassignClientTool returns the tool definition for unassign_client
func unassignClientTool() mcp.Tool {
	return mcp.Tool{
		Name:        "unassign_client",
		Description: "Remove a client from a trip in every role",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"trip_id": tripIDProperty,
				"client_email": map[string]interface{}{
					"type":        "string",
					"description": "Client email address",
				},
			},
			Required: []string{"trip_id", "client_email"},
		},
	}
}

// reconcileTripTool returns the tool definition for reconcile_trip
func reconcileTripTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reconcile_trip",
		Description: "Compare assignment rows with the embedded client list and optionally repair the embedded copy",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"trip_id": map[string]interface{}{
					"type":        "integer",
					"description": "Trip to check; every trip when omitted",
					"minimum":     1,
				},
				"repair": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, rewrite diverged embedded lists from the assignment rows",
					"default":     false,
				},
			},
		},
	}
}

// markDirtyTool returns the tool definition for mark_dirty
func markDirtyTool() mcp.Tool {
	return mcp.Tool{
		Name:        "mark_dirty",
		Description: "Queue trips for fact recomputation. Repeating the same trip and reason before the next recompute has no effect.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"trip_ids": map[string]interface{}{
					"type":        "array",
					"description": "Trip ids whose facts are stale",
					"items": map[string]interface{}{
						"type":    "integer",
						"minimum": 1,
					},
					"minItems": 1,
				},
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Why the facts are stale (e.g. schedule_changed)",
				},
			},
			Required: []string{"trip_ids", "reason"},
		},
	}
}

// recomputeFactsTool returns the tool definition for recompute_facts
func recomputeFactsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recompute_facts",
		Description: "Recompute facts for a bounded batch of dirty trips, oldest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of trips to process (1-500)",
					"default":     25,
					"minimum":     1,
					"maximum":     500,
				},
			},
		},
	}
}

// createTripTool returns the tool definition for create_trip
func createTripTool() mcp.Tool {
	return mcp.Tool{
		Name:        "create_trip",
		Description: "Create a trip, assign its clients and a unique slug, and index it for search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Trip name",
				},
				"slug": map[string]interface{}{
					"type":        "string",
					"description": "Explicit slug; generated from client, destination and year when omitted",
				},
				"status": statusProperty,
				"destinations": map[string]interface{}{
					"type":        "array",
					"description": "Destinations, primary first",
					"items":       map[string]interface{}{"type": "string"},
				},
				"start_date": map[string]interface{}{
					"type":        "string",
					"description": "Start date (YYYY-MM-DD)",
				},
				"end_date": map[string]interface{}{
					"type":        "string",
					"description": "End date (YYYY-MM-DD)",
				},
				"clients": map[string]interface{}{
					"type":        "array",
					"description": "Clients to assign",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"email": map[string]interface{}{"type": "string"},
							"name":  map[string]interface{}{"type": "string"},
							"role":  roleProperty,
						},
						"required": []string{"email"},
					},
				},
				"plan": planProperty,
			},
			Required: []string{"name"},
		},
	}
}

// updateTripTool returns the tool definition for update_trip
func updateTripTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_trip",
		Description: "Change trip attributes or its itinerary. Omitted fields are left unchanged; cancel a trip by setting status to cancelled.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"trip_id": tripIDProperty,
				"name": map[string]interface{}{
					"type": "string",
				},
				"status": statusProperty,
				"destinations": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
				"start_date": map[string]interface{}{
					"type":        "string",
					"description": "Start date (YYYY-MM-DD)",
				},
				"end_date": map[string]interface{}{
					"type":        "string",
					"description": "End date (YYYY-MM-DD)",
				},
				"plan": planProperty,
			},
			Required: []string{"trip_id"},
		},
	}
}

// getTripTool returns the tool definition for get_trip
func getTripTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_trip",
		Description: "Read a trip with its assignments and cached facts",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"trip_id": tripIDProperty,
			},
			Required: []string{"trip_id"},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Rebuild search text and semantic components for every trip",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Parallel workers; defaults to the configured value",
					"minimum":     1,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query store statistics, dirty queue depth and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
