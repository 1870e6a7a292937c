package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/edvin/workspace-migrate/internal/metrics"
	"github.com/edvin/workspace-migrate/internal/store"
	"github.com/edvin/workspace-migrate/internal/workspace"
)

// SecretScopes lists secret scopes and embeds each scope's ACLs under
// "acls". Secret values are never read.
func (e *Extractor) SecretScopes(ctx context.Context) ([]workspace.Record, error) {
	resp, err := e.client.Get(ctx, workspace.EndpointSecretScopesList, nil)
	if err != nil {
		e.metrics.ObserveResource(phase, KindSecretScopes, metrics.ResultFailed)
		return nil, fmt.Errorf("list secret scopes: %w", err)
	}
	scopes, err := workspace.Records(resp.Body, "scopes")
	if err != nil {
		return nil, err
	}

	out := []workspace.Record{}
	for _, scope := range scopes {
		name := scope.String("name")
		acls := json.RawMessage("[]")

		aclResp, err := e.client.Get(ctx, workspace.EndpointSecretACLsList, url.Values{"scope": {name}})
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn().Err(err).Str("scope", name).Msg("failed to list scope ACLs")
		default:
			items, err := workspace.Records(aclResp.Body, "items")
			if err != nil {
				e.logger.Warn().Err(err).Str("scope", name).Msg("unreadable scope ACLs")
				break
			}
			if items != nil {
				if data, err := json.Marshal(items); err == nil {
					acls = data
				}
			}
		}

		scope["acls"] = acls
		out = append(out, scope)
		e.metrics.ObserveResource(phase, KindSecretScopes, metrics.ResultExtracted)
	}

	if err := e.dir.WriteJSON(store.FileSecretScopes, out); err != nil {
		return nil, err
	}
	e.logger.Info().Int("count", len(out)).Msg("secret scopes extracted")
	return out, nil
}

// UsersGroups writes the SCIM user and group listings. The two calls are
// independent; a failure of one does not prevent the other file.
func (e *Extractor) UsersGroups(ctx context.Context) error {
	var errs []error
	for _, s := range []struct {
		kind, endpoint, file string
	}{
		{KindUsers, workspace.EndpointSCIMUsers, store.FileUsers},
		{KindGroups, workspace.EndpointSCIMGroups, store.FileGroups},
	} {
		resp, err := e.client.Get(ctx, s.endpoint, nil)
		if err != nil {
			e.metrics.ObserveResource(phase, s.kind, metrics.ResultFailed)
			errs = append(errs, fmt.Errorf("list %s: %w", s.kind, err))
			continue
		}
		if err := e.dir.WriteJSON(s.file, resp.Body); err != nil {
			errs = append(errs, err)
			continue
		}
		e.metrics.ObserveResource(phase, s.kind, metrics.ResultExtracted)
	}
	return errors.Join(errs...)
}

// Permissions collects the permission sets of every cluster, job and
// instance pool. A kind whose listing fails is left out of the file; an
// object whose permissions cannot be read is skipped.
func (e *Extractor) Permissions(ctx context.Context) (map[string][]*workspace.Payload, error) {
	out := map[string][]*workspace.Payload{}
	for _, s := range []struct {
		key      string
		kind     workspace.PermissionKind
		list     string
		listKey  string
		idField  string
		outField string
	}{
		{"clusters", workspace.PermissionKindClusters, workspace.EndpointClustersList, "clusters", "cluster_id", "cluster_id"},
		{"jobs", workspace.PermissionKindJobs, workspace.EndpointJobsList, "jobs", "job_id", "job_id"},
		{"instance_pools", workspace.PermissionKindInstancePools, workspace.EndpointInstancePoolsList, "instance_pools", "instance_pool_id", "pool_id"},
	} {
		resp, err := e.client.Get(ctx, s.list, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn().Err(err).Str("kind", s.key).Msg("failed to list objects for permissions")
			continue
		}
		objects, err := workspace.Records(resp.Body, s.listKey)
		if err != nil {
			e.logger.Warn().Err(err).Str("kind", s.key).Msg("unreadable object listing")
			continue
		}

		entries := []*workspace.Payload{}
		for _, obj := range objects {
			id := obj.ID(s.idField)
			if id == "" {
				continue
			}
			perms, err := e.client.Get(ctx, workspace.PermissionsEndpoint(s.kind, id), nil)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				e.logger.Warn().Err(err).Str("kind", s.key).Str("id", id).Msg("failed to read permissions")
				e.metrics.ObserveResource(phase, KindPermissions, metrics.ResultFailed)
				continue
			}
			if perms.Empty() {
				continue
			}
			entry := workspace.NewPayload()
			entry.Set(s.outField, obj[s.idField])
			entry.Set("permissions", perms.Body)
			entries = append(entries, entry)
			e.metrics.ObserveResource(phase, KindPermissions, metrics.ResultExtracted)
		}
		out[s.key] = entries
	}

	if err := e.dir.WriteJSON(store.FilePermissions, out); err != nil {
		return nil, err
	}
	return out, nil
}
