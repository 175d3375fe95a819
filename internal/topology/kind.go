package topology

import (
	"fmt"
	"strings"
)

// Kind names a topology family.
type Kind string

const (
	Lattice        Kind = "lattice"
	ErdosRenyi     Kind = "erdos-renyi"
	BarabasiAlbert Kind = "barabasi-albert"
	WattsStrogatz  Kind = "watts-strogatz"
)

// Kinds lists every supported family in a stable order.
var Kinds = []Kind{Lattice, ErdosRenyi, BarabasiAlbert, WattsStrogatz}

var kindAliases = map[string]Kind{
	"la": Lattice,
	"er": ErdosRenyi,
	"ba": BarabasiAlbert,
	"ws": WattsStrogatz,
}

// ParseKind resolves a family name or its two-letter alias
// (la, er, ba, ws). Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	k := Kind(name)
	if !k.Valid() {
		return "", fmt.Errorf("unknown topology kind %q (use lattice, erdos-renyi, barabasi-albert or watts-strogatz)", s)
	}
	return k, nil
}

// Valid returns true if the kind is a recognized family.
func (k Kind) Valid() bool {
	switch k {
	case Lattice, ErdosRenyi, BarabasiAlbert, WattsStrogatz:
		return true
	}
	return false
}

// Short returns the two-letter alias of the kind.
func (k Kind) Short() string {
	for alias, kind := range kindAliases {
		if kind == k {
			return alias
		}
	}
	return string(k)
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}
