package backend

import (
	"context"
	"sort"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type methodFunc func(ctx context.Context, c *Client, a *args) (any, error)

var methods = map[string]methodFunc{
	"info": func(ctx context.Context, c *Client, a *args) (any, error) {
		if err := a.done(); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.InfoRequest{}, false)
	},

	"ping": func(ctx context.Context, c *Client, a *args) (any, error) {
		if err := a.done(); err != nil {
			return nil, err
		}
		res, err := c.do(ctx, esapi.PingRequest{}, true)
		if _, ok := IsTransport(err); ok {
			// ping reports reachability, not failures
			return false, nil
		}
		return res, err
	},

	"index": func(ctx context.Context, c *Client, a *args) (any, error) {
		req, err := indexRequest(a)
		if err != nil {
			return nil, err
		}
		return c.do(ctx, req, false)
	},

	"create": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.str("index", true)
		id, e2 := a.str("id", true)
		body, e3 := a.body("body", true)
		refresh, e4 := a.str("refresh", false)
		routing, e5 := a.str("routing", false)
		pipeline, e6 := a.str("pipeline", false)
		timeout, e7 := a.duration("timeout")
		version, e8 := a.intp("version")
		versionType, e9 := a.str("version_type", false)
		shards, e10 := a.str("wait_for_active_shards", false)
		if err := first(e1, e2, e3, e4, e5, e6, e7, e8, e9, e10, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.CreateRequest{
			Index: index, DocumentID: id, Body: body, Refresh: refresh,
			Routing: routing, Pipeline: pipeline, Timeout: timeout,
			Version: version, VersionType: versionType, WaitForActiveShards: shards,
		}, false)
	},

	"get": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.str("index", true)
		id, e2 := a.str("id", true)
		routing, e3 := a.str("routing", false)
		preference, e4 := a.str("preference", false)
		realtime, e5 := a.boolp("realtime")
		if err := first(e1, e2, e3, e4, e5, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.GetRequest{
			Index: index, DocumentID: id, Routing: routing,
			Preference: preference, Realtime: realtime,
		}, false)
	},

	"exists": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.str("index", true)
		id, e2 := a.str("id", true)
		routing, e3 := a.str("routing", false)
		if err := first(e1, e2, e3, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.ExistsRequest{Index: index, DocumentID: id, Routing: routing}, true)
	},

	"delete": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.str("index", true)
		id, e2 := a.str("id", true)
		refresh, e3 := a.str("refresh", false)
		routing, e4 := a.str("routing", false)
		if err := first(e1, e2, e3, e4, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.DeleteRequest{
			Index: index, DocumentID: id, Refresh: refresh, Routing: routing,
		}, false)
	},

	"update": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.str("index", true)
		id, e2 := a.str("id", true)
		body, e3 := a.body("body", true)
		refresh, e4 := a.str("refresh", false)
		routing, e5 := a.str("routing", false)
		retries, e6 := a.intp("retry_on_conflict")
		if err := first(e1, e2, e3, e4, e5, e6, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.UpdateRequest{
			Index: index, DocumentID: id, Body: body, Refresh: refresh,
			Routing: routing, RetryOnConflict: retries,
		}, false)
	},

	"search": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.list("index", false)
		body, e2 := a.body("body", false)
		q, e3 := a.str("q", false)
		size, e4 := a.intp("size")
		from, e5 := a.intp("from")
		sortBy, e6 := a.list("sort", false)
		routing, e7 := a.list("routing", false)
		if err := first(e1, e2, e3, e4, e5, e6, e7, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.SearchRequest{
			Index: index, Body: body, Query: q, Size: size, From: from,
			Sort: sortBy, Routing: routing,
		}, false)
	},

	"count": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.list("index", false)
		body, e2 := a.body("body", false)
		q, e3 := a.str("q", false)
		if err := first(e1, e2, e3, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.CountRequest{Index: index, Body: body, Query: q}, false)
	},

	"mget": func(ctx context.Context, c *Client, a *args) (any, error) {
		body, e1 := a.body("body", true)
		index, e2 := a.str("index", false)
		if err := first(e1, e2, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.MgetRequest{Index: index, Body: body}, false)
	},

	"delete_by_query": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.list("index", true)
		body, e2 := a.body("body", true)
		refresh, e3 := a.boolp("refresh")
		conflicts, e4 := a.str("conflicts", false)
		if err := first(e1, e2, e3, e4, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.DeleteByQueryRequest{
			Index: index, Body: body, Refresh: refresh, Conflicts: conflicts,
		}, false)
	},

	"indices_create": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.str("index", true)
		body, e2 := a.body("body", false)
		if err := first(e1, e2, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.IndicesCreateRequest{Index: index, Body: body}, false)
	},

	"indices_delete": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.list("index", true)
		if err := first(e1, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.IndicesDeleteRequest{Index: index}, false)
	},

	"indices_exists": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.list("index", true)
		if err := first(e1, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.IndicesExistsRequest{Index: index}, true)
	},

	"indices_refresh": func(ctx context.Context, c *Client, a *args) (any, error) {
		index, e1 := a.list("index", false)
		if err := first(e1, a.done()); err != nil {
			return nil, err
		}
		return c.do(ctx, esapi.IndicesRefreshRequest{Index: index}, false)
	},
}

// MethodNames lists the API methods that can be exposed as services.
func MethodNames() []string {
	out := make([]string, 0, len(methods))
	for name := range methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// indexRequest builds a document write from keyword arguments. It serves both
// the index method and the event path.
func indexRequest(a *args) (esapi.IndexRequest, error) {
	index, e1 := a.str("index", true)
	body, e2 := a.body("body", true)
	id, e3 := a.str("id", false)
	refresh, e4 := a.str("refresh", false)
	routing, e5 := a.str("routing", false)
	pipeline, e6 := a.str("pipeline", false)
	opType, e7 := a.str("op_type", false)
	timeout, e8 := a.duration("timeout")
	version, e9 := a.intp("version")
	versionType, e10 := a.str("version_type", false)
	seqNo, e11 := a.intp("if_seq_no")
	primaryTerm, e12 := a.intp("if_primary_term")
	shards, e13 := a.str("wait_for_active_shards", false)
	requireAlias, e14 := a.boolp("require_alias")
	if err := first(e1, e2, e3, e4, e5, e6, e7, e8, e9, e10, e11, e12, e13, e14, a.done()); err != nil {
		return esapi.IndexRequest{}, err
	}
	return esapi.IndexRequest{
		Index: index, DocumentID: id, Body: body, Refresh: refresh,
		Routing: routing, Pipeline: pipeline, OpType: opType, Timeout: timeout,
		Version: version, VersionType: versionType,
		IfSeqNo: seqNo, IfPrimaryTerm: primaryTerm,
		WaitForActiveShards: shards, RequireAlias: requireAlias,
	}, nil
}
