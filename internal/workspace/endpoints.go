package workspace

import "net/url"

// Versioned endpoints, relative to "<host>/api/".
const (
	EndpointClustersList   = "2.0/clusters/list"
	EndpointClustersGet    = "2.0/clusters/get"
	EndpointClustersCreate = "2.0/clusters/create"

	EndpointJobsList   = "2.1/jobs/list"
	EndpointJobsGet    = "2.1/jobs/get"
	EndpointJobsCreate = "2.1/jobs/create"

	EndpointDBFSList = "2.0/dbfs/list"

	EndpointWorkspaceList   = "2.0/workspace/list"
	EndpointWorkspaceExport = "2.0/workspace/export"
	EndpointWorkspaceImport = "2.0/workspace/import"

	EndpointInstancePoolsList   = "2.0/instance-pools/list"
	EndpointInstancePoolsCreate = "2.0/instance-pools/create"

	EndpointSecretScopesList   = "2.0/secrets/scopes/list"
	EndpointSecretScopesCreate = "2.0/secrets/scopes/create"
	EndpointSecretACLsList     = "2.0/secrets/acls/list"
	EndpointSecretACLsPut      = "2.0/secrets/acls/put"

	EndpointSCIMUsers  = "2.0/preview/scim/v2/Users"
	EndpointSCIMGroups = "2.0/preview/scim/v2/Groups"

	EndpointWorkspaceConf = "2.0/workspace-conf"
)

// PermissionKind is the object-type segment of a permissions endpoint.
type PermissionKind string

const (
	PermissionKindClusters      = PermissionKind("clusters")
	PermissionKindJobs          = PermissionKind("jobs")
	PermissionKindInstancePools = PermissionKind("instance-pools")
)

func PermissionsEndpoint(kind PermissionKind, id string) string {
	return "2.0/permissions/" + string(kind) + "/" + url.PathEscape(id)
}

type ClusterState string

const (
	ClusterStateRunning    = ClusterState("RUNNING")
	ClusterStateTerminated = ClusterState("TERMINATED")
)

type ObjectType string

const (
	ObjectTypeNotebook  = ObjectType("NOTEBOOK")
	ObjectTypeDirectory = ObjectType("DIRECTORY")
	ObjectTypeFile      = ObjectType("FILE")
)

const (
	ExportFormatSource = "SOURCE"
	LanguagePython     = "PYTHON"

	// ScopeBackendDatabricks is the only backend type carried into a scope
	// create request.
	ScopeBackendDatabricks = "DATABRICKS"
)
