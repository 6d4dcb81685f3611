package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ksred/linkdesk/internal/search"
	"github.com/ksred/linkdesk/internal/services"
	"github.com/ksred/linkdesk/internal/utils"
)

// Whitelisted method names
const (
	MethodSearchLink   = "linkdesk.desk.search.search_link"
	MethodSearchWidget = "linkdesk.desk.search.search_widget"
	MethodRerunPatch   = "linkdesk.core.patch_log.rerun_patch"
	MethodListPatchLog = "linkdesk.core.patch_log.list"
)

// Searcher runs link searches
type Searcher interface {
	SearchLink(ctx context.Context, req search.LinkRequest) ([]search.Result, error)
	SearchWidget(ctx context.Context, req search.WidgetRequest) ([][]string, error)
}

// PatchLogs lists patch logs and re-runs them
type PatchLogs interface {
	List(ctx context.Context, req services.ListPatchLogsRequest) (*services.PatchLogList, error)
	RerunPatch(ctx context.Context, id uint) (*services.Notice, error)
}

// RegisterDefaults whitelists the search and patch log methods
func RegisterDefaults(r *Registry, searcher Searcher, patchLogs PatchLogs) error {
	methods := map[string]Method{
		MethodSearchLink: func(ctx context.Context, args Args) (interface{}, error) {
			return searcher.SearchLink(ctx, search.LinkRequest{Args: search.Args(args), Lang: lang(ctx, args)})
		},
		MethodSearchWidget: func(ctx context.Context, args Args) (interface{}, error) {
			return searcher.SearchWidget(ctx, search.WidgetRequest{Args: search.Args(args), Lang: lang(ctx, args)})
		},
		MethodRerunPatch: func(ctx context.Context, args Args) (interface{}, error) {
			id, err := argID(args)
			if err != nil {
				return nil, err
			}
			return patchLogs.RerunPatch(ctx, id)
		},
		MethodListPatchLog: func(ctx context.Context, args Args) (interface{}, error) {
			req := services.ListPatchLogsRequest{Patch: search.Args(args).String("patch")}
			if v, ok := args["skipped"]; ok && v != nil {
				skipped, err := strconv.ParseBool(fmt.Sprint(v))
				if err != nil {
					return nil, utils.InvalidFieldError("skipped", "must be a boolean")
				}
				req.Skipped = &skipped
			}
			req.Limit, _ = strconv.Atoi(search.Args(args).String("limit"))
			req.Offset, _ = strconv.Atoi(search.Args(args).String("offset"))
			return patchLogs.List(ctx, req)
		},
	}

	for name, fn := range methods {
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// lang prefers the caller's resolved locale over a _lang argument
func lang(ctx context.Context, args Args) string {
	if l := services.ActorFromContext(ctx).Lang; l != "" {
		return l
	}
	return search.Args(args).String("_lang")
}

// argID reads the patch log id from "name" or "id"
func argID(args Args) (uint, error) {
	raw, ok := args["name"]
	if !ok || raw == nil {
		raw = args["id"]
	}

	var s string
	switch v := raw.(type) {
	case nil:
		return 0, utils.RequiredFieldError("name")
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		s = v.String()
	default:
		s = strings.TrimSpace(fmt.Sprint(v))
	}

	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, utils.InvalidFieldError("name", fmt.Sprintf("invalid patch log id %q", s))
	}
	return uint(id), nil
}
