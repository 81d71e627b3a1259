package config

import (
	"fmt"
	"strings"
)

// Endpoint addresses a port in a connection: "node.port" for a node's own
// port, "group.@port" for the internal face of a group's boundary port.
type Endpoint struct {
	Node     string
	Port     string
	Internal bool
}

func (e Endpoint) String() string {
	if e.Internal {
		return e.Node + ".@" + e.Port
	}
	return e.Node + "." + e.Port
}

// ParseEndpoint splits "node.port" / "node.@port".
func ParseEndpoint(s string) (Endpoint, error) {
	node, port, ok := strings.Cut(s, ".")
	if !ok || node == "" || port == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q: want node.port", s)
	}
	ep := Endpoint{Node: node, Port: port}
	if strings.HasPrefix(port, "@") {
		ep.Internal = true
		ep.Port = port[1:]
	}
	if ep.Port == "" || strings.ContainsAny(ep.Port, ".@") {
		return Endpoint{}, fmt.Errorf("endpoint %q: invalid port name", s)
	}
	return ep, nil
}
