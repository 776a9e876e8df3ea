package policy

import (
	"slices"
	"sort"
)

// Capabilities granted to agents
const (
	PermClaudeMDRead    = "claude-md:read"
	PermClaudeMDWrite   = "claude-md:write"
	PermClaudeMDAudit   = "claude-md:audit"
	PermAgentsSpawn     = "agents:spawn"
	PermAgentsManage    = "agents:manage"
	PermTasksDecompose  = "tasks:decompose"
	PermSecurityScan    = "security:scan"
	PermCertsVerify     = "certificates:verify"
	PermSessionsRevoke  = "sessions:revoke"
	PermResearchExecute = "research:execute"
	PermResearchPublish = "research:publish"
)

// Built-in agent types
const (
	AgentTypeMeta     = "meta-agent"
	AgentTypeSecurity = "security-agent"
	AgentTypeResearch = "research-agent"
)

// DefaultPermission is granted to agents of an unrecognized type
const DefaultPermission = PermClaudeMDRead

var builtinPermissions = map[string][]string{
	AgentTypeMeta: {
		PermClaudeMDRead,
		PermClaudeMDWrite,
		PermAgentsSpawn,
		PermAgentsManage,
		PermTasksDecompose,
	},
	AgentTypeSecurity: {
		PermClaudeMDRead,
		PermClaudeMDAudit,
		PermSecurityScan,
		PermCertsVerify,
		PermSessionsRevoke,
	},
	AgentTypeResearch: {
		PermClaudeMDRead,
		PermResearchExecute,
		PermResearchPublish,
	},
}

// Registry maps agent types to their default capability sets. It is
// consulted only when a certificate is issued; the result is baked into
// the agent's metadata.
type Registry struct {
	permissions map[string][]string
}

// NewRegistry creates a registry with the built-in agent types. Entries in
// overrides add new agent types or replace built-in ones.
func NewRegistry(overrides map[string][]string) *Registry {
	permissions := make(map[string][]string, len(builtinPermissions)+len(overrides))
	for agentType, perms := range builtinPermissions {
		permissions[agentType] = slices.Clone(perms)
	}
	for agentType, perms := range overrides {
		permissions[agentType] = slices.Clone(perms)
	}
	return &Registry{permissions: permissions}
}

// DefaultPermissions returns a copy of the capability set for agentType,
// or the read-only default when the type is unknown
func (r *Registry) DefaultPermissions(agentType string) []string {
	if perms, ok := r.permissions[agentType]; ok {
		return slices.Clone(perms)
	}
	return []string{DefaultPermission}
}

// IsKnown reports whether agentType has a registered capability set
func (r *Registry) IsKnown(agentType string) bool {
	_, ok := r.permissions[agentType]
	return ok
}

// AgentTypes returns the registered agent types in sorted order
func (r *Registry) AgentTypes() []string {
	var types []string
	for t := range r.permissions {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
