package config

// Scene is the top-level YAML document: one node graph plus the defaults the
// service uses to traverse it.
type Scene struct {
	Version     string                 `yaml:"version" json:"version" validate:"required"`
	Traversal   TraversalConf          `yaml:"traversal" json:"traversal"`
	Service     ServiceConf            `yaml:"service" json:"service"`
	Variables   map[string]interface{} `yaml:"variables" json:"variables"`
	Nodes       []NodeDef              `yaml:"nodes" json:"nodes" validate:"dive"`
	Connections []Connection           `yaml:"connections" json:"connections" validate:"dive"`
}

// TraversalConf holds the default traversal settings for queries that do not
// override them.
type TraversalConf struct {
	ExcludedGroupTypes []string `yaml:"excluded_group_types" json:"excluded_group_types" validate:"dive,required"`
	LogicalOnly        bool     `yaml:"logical_only" json:"logical_only"`
	IncludeGroups      bool     `yaml:"include_groups" json:"include_groups"`
	MaxDepth           int      `yaml:"max_depth" json:"max_depth" validate:"gte=1"`
}

// ServiceConf holds tunable concurrency settings of the query service.
type ServiceConf struct {
	Workers        int `yaml:"workers" json:"workers" validate:"gte=1"`
	QueueDepth     int `yaml:"queue_depth" json:"queue_depth" validate:"gte=1"`
	QueryTimeoutMs int `yaml:"query_timeout_ms" json:"query_timeout_ms" validate:"gte=1"`
}

// NodeDef declares one node. A node with children (or group: true) is a group
// whose children live in its internal scope.
type NodeDef struct {
	Name       string    `yaml:"name" json:"name" validate:"required"`
	Type       string    `yaml:"type" json:"type" validate:"required"`
	Inputs     []string  `yaml:"inputs,omitempty" json:"inputs,omitempty" validate:"dive,required"`
	Outputs    []string  `yaml:"outputs,omitempty" json:"outputs,omitempty" validate:"dive,required"`
	Active     *bool     `yaml:"active,omitempty" json:"active,omitempty"`
	ActiveWhen string    `yaml:"active_when,omitempty" json:"active_when,omitempty"`
	Group      bool      `yaml:"group,omitempty" json:"group,omitempty"`
	Children   []NodeDef `yaml:"children,omitempty" json:"children,omitempty" validate:"dive"`
}

// IsGroup reports whether the node owns an internal scope.
func (n NodeDef) IsGroup() bool { return n.Group || len(n.Children) > 0 }

// Connection is a directed edge between two endpoints (see ParseEndpoint).
type Connection struct {
	From string `yaml:"from" json:"from" validate:"required"`
	To   string `yaml:"to" json:"to" validate:"required"`
}

// Default returns a Scene carrying every default; documents are decoded on
// top of it so absent keys keep these values.
func Default() *Scene {
	return &Scene{
		Traversal: TraversalConf{
			LogicalOnly: true,
			MaxDepth:    4096,
		},
		Service: ServiceConf{
			Workers:        8,
			QueueDepth:     1024,
			QueryTimeoutMs: 2000,
		},
	}
}
