package eviscape

import (
	"context"
	"net/url"
)

// Node returns the details of a node.
func (c *Client) Node(ctx context.Context, token *Token, nodeID int64) (*Node, error) {
	objs, err := c.call(ctx, "node.get", token, withParams(Page{}, defaultPerPage, "nod_id", formID(nodeID)))
	if err != nil {
		return nil, err
	}
	if len(objs.Nodes) == 0 {
		return nil, ErrEmptyResponse
	}
	return objs.Nodes[0], nil
}

// Listeners returns the nodes following nodeID.
func (c *Client) Listeners(ctx context.Context, token *Token, nodeID int64, page Page) ([]*Node, error) {
	return c.nodes(ctx, "nodes.listeners", token, withParams(page, defaultPerPage, "nod_id", formID(nodeID)))
}

// Speakers returns the nodes nodeID follows.
func (c *Client) Speakers(ctx context.Context, token *Token, nodeID int64, page Page) ([]*Node, error) {
	return c.nodes(ctx, "nodes.speakers", token, withParams(page, defaultPerPage, "nod_id", formID(nodeID)))
}

// NodesForMember returns the nodes a member has perms on. perms defaults
// to DefaultPerms.
func (c *Client) NodesForMember(ctx context.Context, token *Token, memberName, perms string, page Page) ([]*Node, error) {
	if perms == "" {
		perms = DefaultPerms
	}
	return c.nodes(ctx, "nodes.member", token, withParams(page, defaultPerPage, "mem_name", memberName, "perms", perms))
}

// NodesCreatedBy returns the nodes created by a member.
func (c *Client) NodesCreatedBy(ctx context.Context, token *Token, memberName string, page Page) ([]*Node, error) {
	return c.nodes(ctx, "nodes.get", token, withParams(page, defaultPerPage, "mem_name", memberName))
}

// SearchNodes searches public nodes.
func (c *Client) SearchNodes(ctx context.Context, q string, page Page) ([]*Node, error) {
	return c.nodes(ctx, "nodes.search", nil, withParams(page, defaultPerPage, "q", q))
}

func (c *Client) nodes(ctx context.Context, method string, token *Token, params url.Values) ([]*Node, error) {
	objs, err := c.call(ctx, method, token, params)
	if err != nil {
		return nil, err
	}
	return objs.Nodes, nil
}
