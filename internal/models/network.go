package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Node is a location in the logistics network.
type Node struct {
	Name       string            `json:"name" yaml:"name"`
	Label      string            `json:"label" yaml:"label"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// IsHub reports whether the node may serve as a replanning origin.
func (n *Node) IsHub() bool {
	if strings.EqualFold(n.Label, LabelHub) {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(n.Attributes["hubType"])) {
	case "", "none", "false", "no":
		return false
	}
	return true
}

// Link is one scheduled departure between two nodes.
type Link struct {
	ID                  string    `json:"id" yaml:"id"`
	From                string    `json:"from" yaml:"from"`
	To                  string    `json:"to" yaml:"to"`
	Type                string    `json:"type,omitempty" yaml:"type,omitempty"`
	Cost                float64   `json:"cost" yaml:"cost"`
	StartDate           time.Time `json:"startDate" yaml:"startDate"`
	EndDate             time.Time `json:"endDate" yaml:"endDate"`
	PaymentType         string    `json:"paymentType" yaml:"paymentType"`
	RestrictedMerchants []string  `json:"restrictedMerchants,omitempty" yaml:"restrictedMerchants,omitempty"`
	OperatedBy          string    `json:"operatedBy,omitempty" yaml:"operatedBy,omitempty"`
	OrderCount          []string  `json:"order_count,omitempty" yaml:"-"`
}

// Accepts reports whether an order paying with paymentType on behalf of
// merchantID may travel on this link.
func (l *Link) Accepts(paymentType, merchantID string) bool {
	if l.PaymentType != PaymentTypeBoth && l.PaymentType != paymentType {
		return false
	}
	return !slices.Contains(l.RestrictedMerchants, merchantID)
}

func (l *Link) clone() *Link {
	c := *l
	c.RestrictedMerchants = slices.Clone(l.RestrictedMerchants)
	c.OrderCount = slices.Clone(l.OrderCount)
	return &c
}

// NodeRef identifies a node together with its label.
type NodeRef struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Leg is one traversal of a single link in an order's committed path.
type Leg struct {
	From NodeRef `json:"from"`
	To   NodeRef `json:"to"`
	Link *Link   `json:"link"`
}

func (l Leg) String() string {
	return fmt.Sprintf("%s(%s) -> %s(%s)", l.From.Name, l.From.Label, l.To.Name, l.To.Label)
}

// Network is a directed multigraph of nodes and scheduled links. Neighbor
// and parallel-link order follows insertion order.
type Network struct {
	nodes     map[string]*Node
	nodeOrder []string
	links     map[string]*Link
	adj       map[string]*adjacency
}

type adjacency struct {
	order []string
	links map[string][]*Link
}

func NewNetwork() *Network {
	return &Network{
		nodes: make(map[string]*Node),
		links: make(map[string]*Link),
		adj:   make(map[string]*adjacency),
	}
}

// AddNode inserts or replaces a node.
func (n *Network) AddNode(node *Node) {
	if _, ok := n.nodes[node.Name]; !ok {
		n.nodeOrder = append(n.nodeOrder, node.Name)
	}
	n.nodes[node.Name] = node
}

// AddLink inserts a link. Both endpoints must already exist.
func (n *Network) AddLink(link *Link) error {
	if link.ID == "" {
		return fmt.Errorf("link %s -> %s has no id", link.From, link.To)
	}
	if _, ok := n.nodes[link.From]; !ok {
		return fmt.Errorf("link %s: unknown node %q", link.ID, link.From)
	}
	if _, ok := n.nodes[link.To]; !ok {
		return fmt.Errorf("link %s: unknown node %q", link.ID, link.To)
	}
	if _, ok := n.links[link.ID]; ok {
		return fmt.Errorf("duplicate link id %q", link.ID)
	}
	n.links[link.ID] = link

	a, ok := n.adj[link.From]
	if !ok {
		a = &adjacency{links: make(map[string][]*Link)}
		n.adj[link.From] = a
	}
	if _, ok := a.links[link.To]; !ok {
		a.order = append(a.order, link.To)
	}
	a.links[link.To] = append(a.links[link.To], link)
	return nil
}

func (n *Network) Node(name string) (*Node, bool) {
	node, ok := n.nodes[name]
	return node, ok
}

func (n *Network) Link(id string) (*Link, bool) {
	link, ok := n.links[id]
	return link, ok
}

// Nodes returns the nodes in insertion order.
func (n *Network) Nodes() []*Node {
	out := make([]*Node, 0, len(n.nodeOrder))
	for _, name := range n.nodeOrder {
		out = append(out, n.nodes[name])
	}
	return out
}

// Links returns every link grouped by source node, in insertion order.
func (n *Network) Links() []*Link {
	out := make([]*Link, 0, len(n.links))
	for _, from := range n.nodeOrder {
		a, ok := n.adj[from]
		if !ok {
			continue
		}
		for _, to := range a.order {
			out = append(out, a.links[to]...)
		}
	}
	return out
}

// Neighbors returns the successors of a node in insertion order.
func (n *Network) Neighbors(name string) []string {
	a, ok := n.adj[name]
	if !ok {
		return nil
	}
	return a.order
}

// LinksBetween returns the parallel links from one node to another.
func (n *Network) LinksBetween(from, to string) []*Link {
	a, ok := n.adj[from]
	if !ok {
		return nil
	}
	return a.links[to]
}

func (n *Network) NodeCount() int { return len(n.nodes) }
func (n *Network) LinkCount() int { return len(n.links) }

// Clone returns a deep copy that shares nothing with n.
func (n *Network) Clone() *Network {
	return n.Subset(nil)
}

// Subset returns a deep copy restricted to the given links and their
// endpoints. A nil keep set copies everything.
func (n *Network) Subset(keep map[string]bool) *Network {
	out := NewNetwork()
	used := make(map[string]bool)
	if keep != nil {
		for id := range keep {
			if l, ok := n.links[id]; ok {
				used[l.From] = true
				used[l.To] = true
			}
		}
	}
	for _, name := range n.nodeOrder {
		if keep != nil && !used[name] {
			continue
		}
		node := n.nodes[name]
		c := *node
		if node.Attributes != nil {
			c.Attributes = make(map[string]string, len(node.Attributes))
			for k, v := range node.Attributes {
				c.Attributes[k] = v
			}
		}
		out.AddNode(&c)
	}
	for _, l := range n.Links() {
		if keep != nil && !keep[l.ID] {
			continue
		}
		// endpoints were copied above
		_ = out.AddLink(l.clone())
	}
	return out
}
