package tools

import (
	"context"
	"time"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/mcp"
	"github.com/conclave-mcp/orchestrator/internal/tasks"
)

// RegisterTaskTools adds the task-management tool group (spec.md §4.D) to
// reg, backed by mgr.
func RegisterTaskTools(reg *mcp.Registry, mgr *tasks.Manager) {
	reg.Register(mcp.Tool{
		Name:        "create_task",
		Description: "Create a task in the pending state.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"task_id":          {Type: mcp.TypeString, Required: true},
			"title":            {Type: mcp.TypeString, Required: true},
			"description":      {Type: mcp.TypeString},
			"priority":         {Type: mcp.TypeString},
			"parent_task":      {Type: mcp.TypeString},
			"depends_on_tasks": {Type: mcp.TypeArray},
			"tags":             {Type: mcp.TypeArray},
			"due_date":         {Type: mcp.TypeString},
			"metadata":         {Type: mcp.TypeObject},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			taskID, err := requiredStringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			title, err := requiredStringArg(args, "title")
			if err != nil {
				return nil, err
			}
			dueDate, err := optionalTimePtr(args, "due_date")
			if err != nil {
				return nil, err
			}
			return mgr.Create(ctx, tasks.CreateParams{
				TaskID:         taskID,
				Title:          title,
				Description:    stringArg(args, "description"),
				Priority:       domain.TaskPriority(stringArg(args, "priority")),
				CreatedBy:      callerAgentID(ctx),
				ParentTask:     optionalStringPtr(args, "parent_task"),
				DependsOnTasks: stringSliceArg(args, "depends_on_tasks"),
				Tags:           stringSliceArg(args, "tags"),
				DueDate:        dueDate,
				Metadata:       mapArg(args, "metadata"),
			})
		},
	})

	reg.Register(mcp.Tool{
		Name:        "update_task_status",
		Description: "Transition a task's status through its FSM.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"task_id": {Type: mcp.TypeString, Required: true},
			"status":  {Type: mcp.TypeString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			taskID, err := requiredStringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			status, err := requiredStringArg(args, "status")
			if err != nil {
				return nil, err
			}
			return mgr.UpdateStatus(ctx, taskID, domain.TaskStatus(status))
		},
	})

	reg.Register(mcp.Tool{
		Name:        "update_task_fields",
		Description: "Apply a partial update to a task's fields.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"task_id":          {Type: mcp.TypeString, Required: true},
			"title":            {Type: mcp.TypeString},
			"description":      {Type: mcp.TypeString},
			"priority":         {Type: mcp.TypeString},
			"parent_task":      {Type: mcp.TypeString},
			"depends_on_tasks": {Type: mcp.TypeArray},
			"tags":             {Type: mcp.TypeArray},
			"due_date":         {Type: mcp.TypeString},
			"metadata":         {Type: mcp.TypeObject},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			taskID, err := requiredStringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			p := tasks.UpdateFieldsParams{}
			if v, ok := args["title"].(string); ok {
				p.Title = &v
			}
			if v, ok := args["description"].(string); ok {
				p.Description = &v
			}
			if v, ok := args["priority"].(string); ok {
				priority := domain.TaskPriority(v)
				p.Priority = &priority
			}
			if _, ok := args["parent_task"]; ok {
				parent := optionalStringPtr(args, "parent_task")
				p.ParentTask = &parent
			}
			if _, ok := args["depends_on_tasks"]; ok {
				deps := stringSliceArg(args, "depends_on_tasks")
				p.DependsOnTasks = &deps
			}
			if _, ok := args["tags"]; ok {
				tagList := stringSliceArg(args, "tags")
				p.Tags = &tagList
			}
			if _, ok := args["due_date"]; ok {
				due, err := optionalTimePtr(args, "due_date")
				if err != nil {
					return nil, err
				}
				p.DueDate = &due
			}
			if v := mapArg(args, "metadata"); v != nil {
				p.Metadata = v
			}
			return mgr.UpdateFields(ctx, taskID, p)
		},
	})

	reg.Register(mcp.Tool{
		Name:        "assign_task",
		Description: "Assign a task to an agent, or clear its assignment.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"task_id":  {Type: mcp.TypeString, Required: true},
			"agent_id": {Type: mcp.TypeString},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			taskID, err := requiredStringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			return mgr.Assign(ctx, taskID, optionalStringPtr(args, "agent_id"))
		},
	})

	reg.Register(mcp.Tool{
		Name:        "view_tasks",
		Description: "View a single task, or every task when no id is given.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"task_id": {Type: mcp.TypeString},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			taskID := stringArg(args, "task_id")
			if taskID == "" {
				return mgr.Search(ctx, tasks.SearchFilter{})
			}
			return mgr.View(ctx, taskID)
		},
	})

	reg.Register(mcp.Tool{
		Name:        "search_tasks",
		Description: "Search tasks by status, priority, assignee, tag, and free text.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"status":      {Type: mcp.TypeString},
			"priority":    {Type: mcp.TypeString},
			"assigned_to": {Type: mcp.TypeString},
			"tag":         {Type: mcp.TypeString},
			"text":        {Type: mcp.TypeString},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			filter := tasks.SearchFilter{
				Tag:  stringArg(args, "tag"),
				Text: stringArg(args, "text"),
			}
			if v := stringArg(args, "status"); v != "" {
				status := domain.TaskStatus(v)
				filter.Status = &status
			}
			if v := stringArg(args, "priority"); v != "" {
				priority := domain.TaskPriority(v)
				filter.Priority = &priority
			}
			filter.AssignedTo = optionalStringPtr(args, "assigned_to")
			return mgr.Search(ctx, filter)
		},
	})

	reg.Register(mcp.Tool{
		Name:        "reorder_tasks",
		Description: "Move a task to a new display-order index within siblings or globally.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"task_id":   {Type: mcp.TypeString, Required: true},
			"new_index": {Type: mcp.TypeInteger, Required: true},
			"scope":     {Type: mcp.TypeString},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			taskID, err := requiredStringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			scope := tasks.ScopeSiblings
			if stringArg(args, "scope") == string(tasks.ScopeGlobal) {
				scope = tasks.ScopeGlobal
			}
			if err := mgr.Reorder(ctx, taskID, intArg(args, "new_index", 0), scope); err != nil {
				return nil, err
			}
			return map[string]any{"reordered": true}, nil
		},
	})

	reg.Register(mcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task, refusing if it has non-terminal descendants.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"task_id": {Type: mcp.TypeString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			taskID, err := requiredStringArg(args, "task_id")
			if err != nil {
				return nil, err
			}
			if err := mgr.Delete(ctx, taskID); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true}, nil
		},
	})

	reg.Register(mcp.Tool{
		Name:        "bulk_update_tasks",
		Description: "Apply one operation across many task ids, returning a per-id outcome.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"task_ids": {Type: mcp.TypeArray, Required: true},
			"op":       {Type: mcp.TypeString, Required: true},
			"value":    {Type: mcp.TypeAny},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			ids := stringSliceArg(args, "task_ids")
			if len(ids) == 0 {
				return nil, apperrors.FieldError("task_ids", "required")
			}
			op := tasks.BulkOp(stringArg(args, "op"))
			return mgr.BulkUpdate(ctx, ids, op, bulkValue(op, args["value"])), nil
		},
	})
}

// bulkValue coerces the generic "value" argument into the concrete type
// BulkUpdate's switch on op expects.
func bulkValue(op tasks.BulkOp, raw any) any {
	switch op {
	case tasks.BulkSetStatus:
		if s, ok := raw.(string); ok {
			return domain.TaskStatus(s)
		}
	case tasks.BulkSetPriority:
		if s, ok := raw.(string); ok {
			return domain.TaskPriority(s)
		}
	case tasks.BulkAssign:
		if s, ok := raw.(string); ok {
			return s
		}
		return ""
	}
	return raw
}

func optionalTimePtr(args map[string]any, name string) (*time.Time, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperrors.FieldError(name, "must be an RFC3339 timestamp")
	}
	return &t, nil
}
