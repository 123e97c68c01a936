package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/consistency"
	"github.com/dshills/tripdesk-mcp/internal/indexer"
	"github.com/dshills/tripdesk-mcp/internal/logging"
	"github.com/dshills/tripdesk-mcp/internal/resolver"
	"github.com/dshills/tripdesk-mcp/internal/slug"
	"github.com/dshills/tripdesk-mcp/internal/storage"
	"github.com/dshills/tripdesk-mcp/internal/trips"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeTripNotFound       = -32001 // Referenced trip id does not exist
	ErrorCodeIndexingInProgress = -32002 // Another rebuild is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// maxRecomputeLimit bounds the batch size a caller may request
const maxRecomputeLimit = 500

// begin tags ctx with a fresh request id and returns a logger carrying it
func (s *Server) begin(ctx context.Context, tool string) (context.Context, *zap.Logger) {
	ctx = logging.ContextWithRequestID(ctx, uuid.NewString())
	logger := logging.WithRequestID(ctx, s.logger).With(zap.String("tool", tool))
	logger.Debug("tool call")
	return ctx, logger
}

// handleResolveTrip handles the resolve_trip tool invocation
func (s *Server) handleResolveTrip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "resolve_trip")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":        "query",
			"reason":       "missing or empty",
			"alternatives": []string{"pass a slug, client name or email, destination, or trip description"},
		})
	}

	res, err := s.engine.Resolver.Resolve(ctx, resolver.Request{
		Query:        query,
		Limit:        getIntDefault(args, "limit", resolver.DefaultLimit),
		IncludeFacts: getBoolDefault(args, "include_facts", false),
	})
	var notFound *types.NotFoundError
	if errors.As(err, &notFound) {
		logger.Info("no trip matched", zap.String("query", query), zap.Int("suggestions", len(notFound.Suggestions)))
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"no_match":     true,
			"query":        notFound.Query,
			"cause":        notFound.Error(),
			"suggestions":  nonNil(notFound.Suggestions),
			"alternatives": notFound.Alternatives,
		})), nil
	}
	if err != nil {
		return nil, s.toolError(logger, "resolution failed", err)
	}

	response := map[string]interface{}{
		"trip_id":     res.TripID,
		"name":        res.Name,
		"slug":        res.Slug,
		"confidence":  res.Confidence,
		"method":      res.Method,
		"explanation": res.Explanation,
		"candidates":  nonNil(res.Candidates),
		"cache_hit":   res.CacheHit,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.Facts != nil {
		response["facts"] = res.Facts
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGenerateSlug handles the generate_slug tool invocation. It has no
// side effects.
func (s *Server) handleGenerateSlug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	attrs := slug.Attributes{
		ClientName:         getStringDefault(args, "client_name", ""),
		ClientEmail:        getStringDefault(args, "client_email", ""),
		PrimaryDestination: getStringDefault(args, "primary_destination", ""),
		Year:               getIntDefault(args, "year", 0),
	}
	if attrs.Year < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "year must not be negative", map[string]interface{}{
			"param":  "year",
			"reason": "negative",
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"slug":       slug.Generate(attrs),
		"attributes": attrs,
	})), nil
}

// handleAssignClient handles the assign_client tool invocation
func (s *Server) handleAssignClient(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "assign_client")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	tripID, err := requireTripID(args)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Consistency.AssignClient(ctx, consistency.AssignRequest{
		TripID: tripID,
		Email:  getStringDefault(args, "client_email", ""),
		Role:   getStringDefault(args, "role", ""),
		Name:   getStringDefault(args, "client_name", ""),
	})
	if err != nil {
		return nil, s.toolError(logger, "assignment failed", err)
	}
	return mcp.NewToolResultText(formatJSON(writeResponse(result))), nil
}

// handleUnassignClient handles the unassign_client tool invocation
func (s *Server) handleUnassignClient(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "unassign_client")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	tripID, err := requireTripID(args)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Consistency.UnassignClient(ctx, tripID, getStringDefault(args, "client_email", ""))
	if err != nil {
		return nil, s.toolError(logger, "unassignment failed", err)
	}
	response := writeResponse(result)
	response["removed"] = result.Removed
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleReconcileTrip handles the reconcile_trip tool invocation
func (s *Server) handleReconcileTrip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "reconcile_trip")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}
	repair := getBoolDefault(args, "repair", false)

	if _, given := args["trip_id"]; !given {
		report, err := s.engine.Consistency.ReconcileAll(ctx, repair)
		if err != nil {
			return nil, s.toolError(logger, "reconciliation failed", err)
		}
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"checked":      report.Checked,
			"inconsistent": report.Inconsistent,
			"repaired":     report.Repaired,
			"diffs":        report.Diffs,
			"errors":       report.Errors,
		})), nil
	}

	tripID, err := requireTripID(args)
	if err != nil {
		return nil, err
	}
	var diff *consistency.Diff
	if repair {
		diff, err = s.engine.Consistency.Repair(ctx, tripID)
	} else {
		diff, err = s.engine.Consistency.Reconcile(ctx, tripID)
	}
	if err != nil {
		return nil, s.toolError(logger, "reconciliation failed", err)
	}

	response := map[string]interface{}{
		"trip_id":    diff.TripID,
		"consistent": diff.Consistent,
		"missing":    nonNil(diff.Missing),
		"extra":      nonNil(diff.Extra),
		"repaired":   diff.Repaired,
	}
	if !diff.Consistent && !diff.Repaired {
		response["alternatives"] = []string{"call reconcile_trip again with repair=true"}
	}
	if diff.Warning != "" {
		response["warning"] = diff.Warning
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleMarkDirty handles the mark_dirty tool invocation
func (s *Server) handleMarkDirty(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "mark_dirty")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	raw, ok := args["trip_ids"].([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "trip_ids parameter is required", map[string]interface{}{
			"param":  "trip_ids",
			"reason": "missing or not an array",
		})
	}
	tripIDs := make([]int64, 0, len(raw))
	for i, v := range raw {
		id, ok := toInt64(v)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "trip_ids must contain integers", map[string]interface{}{
				"param":  fmt.Sprintf("trip_ids[%d]", i),
				"reason": fmt.Sprintf("%v is not an integer", v),
			})
		}
		tripIDs = append(tripIDs, id)
	}

	marked, err := s.engine.Facts.MarkDirty(ctx, tripIDs, strings.TrimSpace(getStringDefault(args, "reason", "")))
	if err != nil {
		return nil, s.toolError(logger, "marking failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"marked": marked,
	})), nil
}

// handleRecomputeFacts handles the recompute_facts tool invocation
func (s *Server) handleRecomputeFacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "recompute_facts")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}
	limit := getIntDefault(args, "limit", s.engine.Config.Facts.Limit)
	if limit < 1 || limit > maxRecomputeLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit out of range", map[string]interface{}{
			"param":  "limit",
			"reason": fmt.Sprintf("must be between 1 and %d", maxRecomputeLimit),
		})
	}

	result, err := s.engine.Facts.Recompute(ctx, limit)
	var timeout *types.TimeoutError
	if err != nil && !errors.As(err, &timeout) {
		return nil, s.toolError(logger, "recompute failed", err)
	}

	response := map[string]interface{}{
		"processed": result.Processed,
		"failed":    result.Failed,
		"remaining": result.Remaining,
		"partial":   result.Partial,
		"cycle":     result.Cycle,
	}
	if len(result.Errors) > 0 {
		response["errors"] = result.Errors
	}
	if timeout != nil {
		response["warning"] = timeout.Error()
	}
	if result.Remaining > 0 {
		response["alternatives"] = []string{"call recompute_facts again to process the remaining trips"}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCreateTrip handles the create_trip tool invocation
func (s *Server) handleCreateTrip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "create_trip")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	in := trips.Input{
		Name:         getStringDefault(args, "name", ""),
		Slug:         getStringDefault(args, "slug", ""),
		Status:       getStringDefault(args, "status", ""),
		Destinations: getStringSlice(args, "destinations"),
		StartDate:    getStringDefault(args, "start_date", ""),
		EndDate:      getStringDefault(args, "end_date", ""),
	}
	if err := decodeArg(args, "clients", &in.Clients); err != nil {
		return nil, err
	}
	if _, given := args["plan"]; given {
		in.Plan = &trips.Plan{}
		if err := decodeArg(args, "plan", in.Plan); err != nil {
			return nil, err
		}
	}

	result, err := s.engine.Trips.Create(ctx, in)
	if err != nil {
		return nil, s.toolError(logger, "trip creation failed", err)
	}
	return mcp.NewToolResultText(formatJSON(tripResponse(result))), nil
}

// handleUpdateTrip handles the update_trip tool invocation
func (s *Server) handleUpdateTrip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "update_trip")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	tripID, err := requireTripID(args)
	if err != nil {
		return nil, err
	}

	patch := trips.Patch{
		Name:      getStringPtr(args, "name"),
		Status:    getStringPtr(args, "status"),
		StartDate: getStringPtr(args, "start_date"),
		EndDate:   getStringPtr(args, "end_date"),
	}
	if _, given := args["destinations"]; given {
		patch.Destinations = getStringSlice(args, "destinations")
		if patch.Destinations == nil {
			patch.Destinations = []string{}
		}
	}
	if _, given := args["plan"]; given {
		patch.Plan = &trips.Plan{}
		if err := decodeArg(args, "plan", patch.Plan); err != nil {
			return nil, err
		}
	}

	result, err := s.engine.Trips.Update(ctx, tripID, patch)
	if err != nil {
		return nil, s.toolError(logger, "trip update failed", err)
	}
	return mcp.NewToolResultText(formatJSON(tripResponse(result))), nil
}

// handleGetTrip handles the get_trip tool invocation
func (s *Server) handleGetTrip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "get_trip")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	tripID, err := requireTripID(args)
	if err != nil {
		return nil, err
	}

	trip, err := s.engine.Trips.Get(ctx, tripID)
	if err != nil {
		return nil, s.toolError(logger, "trip lookup failed", err)
	}
	assignments, err := s.engine.Store.ListAssignments(ctx, tripID)
	if err != nil {
		return nil, s.toolError(logger, "assignment lookup failed", err)
	}

	response := map[string]interface{}{
		"trip":        tripJSON(trip),
		"assignments": nonNil(assignments),
	}
	facts, err := s.engine.Facts.Get(ctx, tripID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		response["facts"] = nil
		response["alternatives"] = []string{"call recompute_facts to compute this trip's facts"}
	case err != nil:
		return nil, s.toolError(logger, "fact lookup failed", err)
	default:
		response["facts"] = facts
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "rebuild_index")

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	stats, err := s.engine.Indexer.RebuildAll(ctx, &indexer.Config{
		Workers: getIntDefault(args, "workers", s.engine.Config.Indexer.Workers),
	})
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "a rebuild is already running", map[string]interface{}{
			"alternatives": []string{"wait for the running rebuild to finish, then check get_status"},
		})
	}
	if err != nil {
		return nil, s.toolError(logger, "rebuild failed", err)
	}
	s.engine.Resolver.Invalidate()

	response := map[string]interface{}{
		"rebuilt":            true,
		"trips_indexed":      stats.TripsIndexed,
		"trips_failed":       stats.TripsFailed,
		"components_created": stats.ComponentsCreated,
		"duration_ms":        stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, logger := s.begin(ctx, "get_status")

	status, err := s.engine.Status(ctx)
	if err != nil {
		return nil, s.toolError(logger, "failed to get status", err)
	}

	response := map[string]interface{}{
		"schema_version": status.SchemaVersion,
		"build_mode":     storage.BuildMode,
		"statistics": map[string]interface{}{
			"trips_count":       status.TripsCount,
			"assignments_count": status.AssignmentsCount,
			"components_count":  status.ComponentsCount,
			"facts_count":       status.FactsCount,
			"dirty_markers":     status.DirtyMarkers,
			"dirty_trips":       status.DirtyTrips,
			"db_size_mb":        fmt.Sprintf("%.2f", status.SizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"json_functions":      status.Health.JSONFunctions,
			"search_text_built":   status.Health.SearchTextBuilt,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// toolError maps an engine error to an MCP error carrying its cause and
// at least one alternative
func (s *Server) toolError(logger *zap.Logger, message string, err error) error {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		logger.Info(message, zap.String("field", verr.Field), zap.String("reason", verr.Reason))
		return newMCPError(ErrorCodeInvalidParams, message, map[string]interface{}{
			"param":        verr.Field,
			"reason":       verr.Reason,
			"alternatives": []string{fmt.Sprintf("correct %s and retry", verr.Field)},
		})
	}
	if errors.Is(err, storage.ErrNotFound) {
		logger.Info(message, zap.Error(err))
		return newMCPError(ErrorCodeTripNotFound, "trip not found", map[string]interface{}{
			"error":        err.Error(),
			"alternatives": []string{"use resolve_trip to find the trip id"},
		})
	}
	logger.Error(message, zap.Error(err))
	return newMCPError(ErrorCodeInternalError, message, map[string]interface{}{
		"error":        err.Error(),
		"alternatives": []string{"retry the call; if it keeps failing check get_status"},
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func writeResponse(result *consistency.WriteResult) map[string]interface{} {
	response := map[string]interface{}{
		"trip_id":    result.TripID,
		"consistent": result.Consistent,
	}
	if result.Assignment != nil {
		response["assignment"] = result.Assignment
	}
	if result.Warning != "" {
		response["warning"] = result.Warning
	}
	if !result.Consistent {
		response["alternatives"] = []string{"call reconcile_trip with repair=true"}
	}
	return response
}

func tripResponse(result *trips.Result) map[string]interface{} {
	response := map[string]interface{}{
		"trip": tripJSON(result.Trip),
	}
	if len(result.Warnings) > 0 {
		response["warnings"] = result.Warnings
	}
	return response
}

func tripJSON(t *types.Trip) map[string]interface{} {
	out := map[string]interface{}{
		"trip_id":      t.ID,
		"name":         t.Name,
		"slug":         t.Slug,
		"status":       t.Status,
		"destinations": nonNil(t.Destinations),
		"document":     t.Document,
		"created_at":   t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"updated_at":   t.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if !t.StartDate.IsZero() {
		out["start_date"] = t.StartDate.Format("2006-01-02")
	}
	if !t.EndDate.IsZero() {
		out["end_date"] = t.EndDate.Format("2006-01-02")
	}
	return out
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// requireTripID extracts the mandatory trip_id parameter
func requireTripID(args map[string]interface{}) (int64, error) {
	id, ok := toInt64(args["trip_id"])
	if !ok || id <= 0 {
		return 0, newMCPError(ErrorCodeInvalidParams, "trip_id parameter is required", map[string]interface{}{
			"param":        "trip_id",
			"reason":       "missing or not a positive integer",
			"alternatives": []string{"use resolve_trip to find the trip id"},
		})
	}
	return id, nil
}

// toInt64 accepts JSON numbers that hold whole values
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// decodeArg re-decodes a structured argument into out. Absent keys leave
// out untouched.
func decodeArg(args map[string]interface{}, key string, out interface{}) error {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err == nil {
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		return newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("invalid %s", key), map[string]interface{}{
			"param":  key,
			"reason": err.Error(),
		})
	}
	return nil
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringPtr returns nil when the parameter is absent
func getStringPtr(args map[string]interface{}, key string) *string {
	if val, ok := args[key].(string); ok {
		return &val
	}
	return nil
}

// getStringSlice extracts the string elements of an array parameter
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
